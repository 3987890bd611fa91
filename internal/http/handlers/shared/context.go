package shared

import (
	"strconv"
	"strings"

	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextKeyRequestID = "request_id"
	ContextKeyOperator  = "operator"
	ContextKeyClaims    = "operator_claims"
	ContextKeySiteID    = "site_id"
)

// Claims 读取鉴权中间件写入的令牌声明
func Claims(c *gin.Context) *service.OperatorClaims {
	value, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := value.(*service.OperatorClaims)
	return claims
}

// SiteID 读取站点范围中间件校验过的站点ID
func SiteID(c *gin.Context) uint {
	value, ok := c.Get(ContextKeySiteID)
	if !ok {
		return 0
	}
	id, _ := value.(uint)
	return id
}

// ParseParamUint 解析路径参数为 uint
func ParseParamUint(c *gin.Context, name string) (uint, error) {
	return parseUint(c.Param(name))
}

// ParseQueryUint 解析查询参数为 uint，缺省时返回 0
func ParseQueryUint(c *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	return parseUint(raw)
}

func parseUint(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
