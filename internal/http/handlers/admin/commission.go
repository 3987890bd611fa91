package admin

import (
	"strconv"
	"strings"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/repository"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CommissionReport 佣金汇总
type CommissionReport struct {
	Total   service.CommissionTotal       `json:"total"`
	ByLevel []service.LevelCommission     `json:"by_level,omitempty"`
	ByUser  []service.UserLevelCommission `json:"by_user,omitempty"`
}

// parseUintList 解析逗号分隔的 ID 列表
func parseUintList(c *gin.Context, name string) ([]uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			response.BadRequest(c, "参数错误: "+name)
			return nil, false
		}
		ids = append(ids, uint(id))
	}
	return ids, true
}

// CommissionSummary 按账期汇总佣金；group=level 按层级，group=user 按成员分层
func (h *Handler) CommissionSummary(c *gin.Context) {
	monthIDs, ok := parseUintList(c, "month_ids")
	if !ok {
		return
	}
	userIDs, ok := parseUintList(c, "user_ids")
	if !ok {
		return
	}
	filter := repository.CommissionFilter{SiteID: shared.SiteID(c), MonthIDs: monthIDs, UserIDs: userIDs}
	total, err := h.CommissionService.Sum(nil, filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	report := CommissionReport{Total: total}
	switch c.DefaultQuery("group", "level") {
	case "level":
		report.ByLevel, err = h.CommissionService.ByLevel(nil, filter)
	case "user":
		report.ByUser, err = h.CommissionService.ByUserLevel(nil, filter)
	default:
		response.BadRequest(c, "参数错误: group")
		return
	}
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, report)
}
