package admin

import (
	"strconv"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// UserRequest 成员创建/更新请求
type UserRequest struct {
	Name                  string        `json:"name"`
	Email                 string        `json:"email"`
	MemberNumber          string        `json:"member_number"`
	NIF                   string        `json:"nif"`
	TierID                uint          `json:"tier_id"`
	CustomRates           *string       `json:"custom_rates"`
	MonthlyPremium        *models.Money `json:"monthly_premium"`
	MonthlyAdminDeduction *models.Money `json:"monthly_admin_deduction"`
}

func (r UserRequest) toInput(siteID uint) service.SaveUserInput {
	return service.SaveUserInput{
		SiteID:                siteID,
		Name:                  r.Name,
		Email:                 r.Email,
		MemberNumber:          r.MemberNumber,
		NIF:                   r.NIF,
		TierID:                r.TierID,
		CustomRates:           r.CustomRates,
		MonthlyPremium:        r.MonthlyPremium,
		MonthlyAdminDeduction: r.MonthlyAdminDeduction,
	}
}

// UserDetail 成员详情，附带团队按层级统计
type UserDetail struct {
	*models.User
	Team []repository.LevelCountRow `json:"team"`
}

// ListUsers 成员列表
func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	tierID, err := shared.ParseQueryUint(c, "tier_id")
	if err != nil {
		response.BadRequest(c, "参数错误: tier_id")
		return
	}
	onlyActive, _ := strconv.ParseBool(c.DefaultQuery("only_active", "false"))
	users, total, err := h.MemberService.ListUsers(c.Request.Context(), repository.UserListFilter{
		Page:       page,
		PageSize:   pageSize,
		SiteID:     shared.SiteID(c),
		TierID:     tierID,
		Keyword:    c.Query("keyword"),
		OnlyActive: onlyActive,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, users, response.NewPagination(page, pageSize, total))
}

// CreateUser 创建成员
func (h *Handler) CreateUser(c *gin.Context) {
	var req UserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.MemberService.CreateUser(c.Request.Context(), req.toInput(shared.SiteID(c)))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser 成员详情
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.MemberService.GetUser(ctx, shared.SiteID(c), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	team, err := h.TreeService.TeamStats(ctx, nil, user.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, UserDetail{User: user, Team: team})
}

// UpdateUser 更新成员
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	var req UserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.MemberService.UpdateUser(c.Request.Context(), id, req.toInput(shared.SiteID(c)))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, user)
}

// DeactivateUser 停用成员
func (h *Handler) DeactivateUser(c *gin.Context) {
	id, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.MemberService.DeactivateUser(c.Request.Context(), shared.SiteID(c), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, user)
}
