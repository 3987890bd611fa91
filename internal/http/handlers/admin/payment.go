package admin

import (
	"strconv"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/queue"
	"github.com/teamledger/internal/repository"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PaymentStateRequest 结算单状态流转请求
type PaymentStateRequest struct {
	State string `json:"state" binding:"required"`
}

// PaymentEditRequest 结算单手工调整，未提供的字段保持不变
type PaymentEditRequest struct {
	Premium            *models.Money    `json:"premium"`
	AdminDeduction     *models.Money    `json:"admin_deduction"`
	OperationalCosts   *models.Money    `json:"operational_costs"`
	TaxPercent         *decimal.Decimal `json:"tax_percent"`
	WithholdingPercent *decimal.Decimal `json:"withholding_percent"`
	Note               *string          `json:"note"`
}

// ListPayments 结算单列表
func (h *Handler) ListPayments(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	filter := repository.PaymentListFilter{
		Page:     page,
		PageSize: pageSize,
		SiteID:   shared.SiteID(c),
		State:    c.Query("state"),
	}
	var err error
	if filter.MonthID, err = shared.ParseQueryUint(c, "month_id"); err != nil {
		response.BadRequest(c, "参数错误: month_id")
		return
	}
	if filter.UserID, err = shared.ParseQueryUint(c, "user_id"); err != nil {
		response.BadRequest(c, "参数错误: user_id")
		return
	}
	filter.WithVoided, _ = strconv.ParseBool(c.DefaultQuery("with_voided", "false"))
	payments, total, err := h.LedgerService.ListPayments(c.Request.Context(), filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, payments, response.NewPagination(page, pageSize, total))
}

func (h *Handler) loadSitePayment(c *gin.Context) (*models.Payment, bool) {
	id, ok := paramID(c, "payment_id")
	if !ok {
		return nil, false
	}
	payment, err := h.LedgerService.GetPayment(c.Request.Context(), shared.SiteID(c), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return nil, false
	}
	return payment, true
}

// GetPayment 结算单详情
func (h *Handler) GetPayment(c *gin.Context) {
	payment, ok := h.loadSitePayment(c)
	if !ok {
		return
	}
	response.Success(c, payment)
}

// MarkPayment 推进结算单状态
func (h *Handler) MarkPayment(c *gin.Context) {
	payment, ok := h.loadSitePayment(c)
	if !ok {
		return
	}
	var req PaymentStateRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.LedgerService.MarkPayment(c.Request.Context(), payment.ID, req.State)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	shared.RequestLog(c).Infow("payment_state_marked",
		"operator", c.GetString(shared.ContextKeyOperator),
		"payment_id", payment.ID,
		"from", payment.State,
		"to", updated.State,
	)
	response.Success(c, updated)
}

// EditPayment 手工调整结算单
func (h *Handler) EditPayment(c *gin.Context) {
	payment, ok := h.loadSitePayment(c)
	if !ok {
		return
	}
	var req PaymentEditRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.LedgerService.EditPayment(c.Request.Context(), payment.ID, service.EditPaymentInput{
		Premium:            req.Premium,
		AdminDeduction:     req.AdminDeduction,
		OperationalCosts:   req.OperationalCosts,
		TaxPercent:         req.TaxPercent,
		WithholdingPercent: req.WithholdingPercent,
		Note:               req.Note,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// RefreshPayment 重新计算结算单派生字段
func (h *Handler) RefreshPayment(c *gin.Context) {
	payment, ok := h.loadSitePayment(c)
	if !ok {
		return
	}
	updated, err := h.LedgerService.RefreshPayment(c.Request.Context(), payment.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

// CorrectPayment 重新计算成员在账期内的佣金并生成补差
func (h *Handler) CorrectPayment(c *gin.Context) {
	month, ok := h.loadSiteMonth(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.MemberService.GetUser(ctx, month.SiteID, userID); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	result, err := h.LedgerService.CorrectPayment(ctx, userID, month.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ExpirePayments 作废过期未收票的结算单（全站点维护操作）
func (h *Handler) ExpirePayments(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async && h.QueueClient.Enabled() {
		info, err := h.QueueClient.EnqueueExpirePayments(queue.ExpirePaymentsPayload{})
		if err != nil {
			shared.RespondErrorWithMsg(c, response.CodeConflict, "任务投递失败", err)
			return
		}
		response.Success(c, QueuedTask{TaskID: info.ID, Queue: info.Queue})
		return
	}
	affected, err := h.LedgerService.ExpireStalePayments(c.Request.Context(), timeNow())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"expired": affected})
}
