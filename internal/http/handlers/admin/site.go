package admin

import (
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SiteRequest 站点创建/更新请求
type SiteRequest struct {
	Name                   string          `json:"name" binding:"required"`
	ReportVATPercent       decimal.Decimal `json:"report_vat_percent"`
	AdminDeduction         models.Money    `json:"admin_deduction"`
	CommissionWindowMonths int             `json:"commission_window_months"`
	TaxPercent             decimal.Decimal `json:"tax_percent"`
	WithholdingPercent     decimal.Decimal `json:"withholding_percent"`
	HouseCardPhone         string          `json:"house_card_phone"`
}

func (r SiteRequest) toInput() service.SaveSiteInput {
	return service.SaveSiteInput{
		Name:                   r.Name,
		ReportVATPercent:       r.ReportVATPercent,
		AdminDeduction:         r.AdminDeduction,
		CommissionWindowMonths: r.CommissionWindowMonths,
		TaxPercent:             r.TaxPercent,
		WithholdingPercent:     r.WithholdingPercent,
		HouseCardPhone:         r.HouseCardPhone,
	}
}

// ListSites 站点列表；站点令牌只能看到自己的站点
func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.MemberService.ListSites(c.Request.Context())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	claims := shared.Claims(c)
	visible := make([]models.Site, 0, len(sites))
	for _, site := range sites {
		if claims.CanAccessSite(site.ID) {
			visible = append(visible, site)
		}
	}
	response.Success(c, visible)
}

// CreateSite 创建站点
func (h *Handler) CreateSite(c *gin.Context) {
	var req SiteRequest
	if !bindJSON(c, &req) {
		return
	}
	site, err := h.MemberService.CreateSite(c.Request.Context(), req.toInput())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, site)
}

// GetSite 站点详情
func (h *Handler) GetSite(c *gin.Context) {
	site, err := h.MemberService.GetSite(c.Request.Context(), shared.SiteID(c))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, site)
}

// UpdateSite 更新站点配置
func (h *Handler) UpdateSite(c *gin.Context) {
	var req SiteRequest
	if !bindJSON(c, &req) {
		return
	}
	site, err := h.MemberService.UpdateSite(c.Request.Context(), shared.SiteID(c), req.toInput())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, site)
}
