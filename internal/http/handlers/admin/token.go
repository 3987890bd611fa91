package admin

import (
	"time"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// IssueTokenRequest 签发运营令牌请求
type IssueTokenRequest struct {
	Operator string   `json:"operator" binding:"required"`
	SiteID   uint     `json:"site_id"`
	Roles    []string `json:"roles"`
}

// IssueTokenResponse 签发结果
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken 为运营人员签发令牌（仅全站点令牌可调用），携带 roles 时覆盖该运营人员的角色
func (h *Handler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.SiteID != 0 {
		if _, err := h.MemberService.GetSite(c.Request.Context(), req.SiteID); err != nil {
			shared.RespondServiceError(c, err)
			return
		}
	}
	if len(req.Roles) > 0 {
		if err := h.AuthzService.SetOperatorRoles(req.Operator, req.Roles); err != nil {
			shared.RespondServiceError(c, err)
			return
		}
	}
	token, expiresAt, err := h.Tokens.Issue(req.Operator, req.SiteID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	shared.RequestLog(c).Infow("operator_token_issued",
		"issued_by", c.GetString(shared.ContextKeyOperator),
		"operator", req.Operator,
		"site_id", req.SiteID,
		"roles", req.Roles,
	)
	response.Success(c, IssueTokenResponse{Token: token, ExpiresAt: expiresAt})
}
