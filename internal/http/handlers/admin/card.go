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

// CardOrderRequest 卡片申领请求
type CardOrderRequest struct {
	SellerID uint   `json:"seller_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Comment  string `json:"comment"`
}

// ExpediteRequest 发货请求
type ExpediteRequest struct {
	SIMs []string `json:"sims" binding:"required,min=1"`
}

// AssignOwnerRequest 绑定持卡成员请求
type AssignOwnerRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AttachMemberCardRequest 成员卡号绑定请求
type AttachMemberCardRequest struct {
	Phone        string `json:"phone" binding:"required"`
	SponsorPhone string `json:"sponsor_phone"`
}

// ListCards 卡片列表
func (h *Handler) ListCards(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	filter := repository.CardListFilter{
		Page:     page,
		PageSize: pageSize,
		SiteID:   shared.SiteID(c),
		Keyword:  c.Query("keyword"),
	}
	var err error
	if filter.SellerID, err = shared.ParseQueryUint(c, "seller_id"); err != nil {
		response.BadRequest(c, "参数错误: seller_id")
		return
	}
	if filter.OwnerID, err = shared.ParseQueryUint(c, "owner_id"); err != nil {
		response.BadRequest(c, "参数错误: owner_id")
		return
	}
	if filter.OrderID, err = shared.ParseQueryUint(c, "order_id"); err != nil {
		response.BadRequest(c, "参数错误: order_id")
		return
	}
	filter.OnlyActivated, _ = strconv.ParseBool(c.DefaultQuery("only_activated", "false"))
	cards, total, err := h.CardService.ListCards(c.Request.Context(), filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, cards, response.NewPagination(page, pageSize, total))
}

// AssignOwnerCard 将卡片绑定为成员自己的卡片
func (h *Handler) AssignOwnerCard(c *gin.Context) {
	cardID, ok := paramID(c, "card_id")
	if !ok {
		return
	}
	var req AssignOwnerRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.CardService.GetCard(ctx, shared.SiteID(c), cardID); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	card, err := h.CardService.AssignOwnerCard(ctx, cardID, req.UserID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, card)
}

// AttachMemberCard 按卡号为成员绑定或新建自有卡片
func (h *Handler) AttachMemberCard(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	var req AttachMemberCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.CardService.AttachMemberCard(c.Request.Context(), service.AttachMemberCardInput{
		SiteID:       shared.SiteID(c),
		UserID:       userID,
		Phone:        req.Phone,
		SponsorPhone: req.SponsorPhone,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, card)
}

// CreateCardOrder 卖家申领卡片
func (h *Handler) CreateCardOrder(c *gin.Context) {
	var req CardOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.CardService.CreateOrder(c.Request.Context(), service.CreateCardOrderInput{
		SiteID:   shared.SiteID(c),
		SellerID: req.SellerID,
		Quantity: req.Quantity,
		Comment:  req.Comment,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// loadSiteOrder 读取订单并校验站点归属
func (h *Handler) loadSiteOrder(c *gin.Context) (*models.CardOrder, bool) {
	orderID, ok := paramID(c, "order_id")
	if !ok {
		return nil, false
	}
	order, err := h.CardService.GetOrder(c.Request.Context(), orderID)
	if err == nil && order.SiteID != shared.SiteID(c) {
		err = service.ErrCardOrderNotFound
	}
	if err != nil {
		shared.RespondServiceError(c, err)
		return nil, false
	}
	return order, true
}

// GetCardOrder 订单详情
func (h *Handler) GetCardOrder(c *gin.Context) {
	order, ok := h.loadSiteOrder(c)
	if !ok {
		return
	}
	response.Success(c, order)
}

// ExpediteCardOrder 订单发货并扩展推荐树
func (h *Handler) ExpediteCardOrder(c *gin.Context) {
	order, ok := h.loadSiteOrder(c)
	if !ok {
		return
	}
	var req ExpediteRequest
	if !bindJSON(c, &req) {
		return
	}
	cards, err := h.CardService.ExpediteOrder(c.Request.Context(), order.ID, service.ExpediteOrderInput{SIMs: req.SIMs})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, cards)
}

// RejectCardOrder 拒绝订单
func (h *Handler) RejectCardOrder(c *gin.Context) {
	order, ok := h.loadSiteOrder(c)
	if !ok {
		return
	}
	updated, err := h.CardService.RejectOrder(c.Request.Context(), order.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// CancelCardExpedition 撤销发货
func (h *Handler) CancelCardExpedition(c *gin.Context) {
	order, ok := h.loadSiteOrder(c)
	if !ok {
		return
	}
	updated, err := h.CardService.CancelExpedition(c.Request.Context(), order.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}
