package admin

import (
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// OperatorRolesRequest 设置运营人员角色请求
type OperatorRolesRequest struct {
	Roles []string `json:"roles"`
}

// ListRoles 角色列表
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, roles)
}

// GetRolePolicies 角色策略
func (h *Handler) GetRolePolicies(c *gin.Context) {
	policies, err := h.AuthzService.GetRolePolicies(c.Param("role"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, policies)
}

// GetOperatorRoles 运营人员角色
func (h *Handler) GetOperatorRoles(c *gin.Context) {
	roles, err := h.AuthzService.GetOperatorRoles(c.Param("operator"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, roles)
}

// SetOperatorRoles 覆盖运营人员角色，空列表表示撤销全部角色
func (h *Handler) SetOperatorRoles(c *gin.Context) {
	var req OperatorRolesRequest
	if !bindJSON(c, &req) {
		return
	}
	operator := c.Param("operator")
	if err := h.AuthzService.SetOperatorRoles(operator, req.Roles); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	shared.RequestLog(c).Infow("operator_roles_updated",
		"updated_by", c.GetString(shared.ContextKeyOperator),
		"operator", operator,
		"roles", req.Roles,
	)
	roles, err := h.AuthzService.GetOperatorRoles(operator)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, roles)
}
