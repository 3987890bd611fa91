package admin

import (
	"time"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 运营管理接口处理器入口
type Handler struct {
	*provider.Container
	Tokens *service.OperatorTokenService
}

// New 创建管理端处理器
func New(c *provider.Container, tokens *service.OperatorTokenService) *Handler {
	return &Handler{Container: c, Tokens: tokens}
}

var timeNow = time.Now

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := shared.ParseParamUint(c, name)
	if err != nil || id == 0 {
		response.BadRequest(c, "参数错误: "+name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return false
	}
	return true
}
