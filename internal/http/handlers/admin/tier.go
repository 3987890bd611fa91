package admin

import (
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// TierRequest 等级创建/更新请求，rates 形如 "5,3,2"
type TierRequest struct {
	Name      string `json:"name" binding:"required"`
	Threshold int64  `json:"threshold"`
	Rates     string `json:"rates" binding:"required"`
}

// ListTiers 站点等级目录（按阈值升序）
func (h *Handler) ListTiers(c *gin.Context) {
	catalog, err := h.TierService.Catalog(c.Request.Context(), shared.SiteID(c))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, catalog.Tiers)
}

// CreateTier 创建等级
func (h *Handler) CreateTier(c *gin.Context) {
	var req TierRequest
	if !bindJSON(c, &req) {
		return
	}
	tier, err := h.TierService.CreateTier(c.Request.Context(), service.SaveTierInput{
		SiteID:    shared.SiteID(c),
		Name:      req.Name,
		Threshold: req.Threshold,
		Rates:     req.Rates,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, tier)
}

// UpdateTier 更新等级
func (h *Handler) UpdateTier(c *gin.Context) {
	id, ok := paramID(c, "tier_id")
	if !ok {
		return
	}
	var req TierRequest
	if !bindJSON(c, &req) {
		return
	}
	tier, err := h.TierService.UpdateTier(c.Request.Context(), id, service.SaveTierInput{
		SiteID:    shared.SiteID(c),
		Name:      req.Name,
		Threshold: req.Threshold,
		Rates:     req.Rates,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, tier)
}
