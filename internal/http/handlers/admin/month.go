package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/queue"
	"github.com/teamledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// OpenMonthRequest 开账请求，month 形如 2026-01 或任意当月日期
type OpenMonthRequest struct {
	Month string `json:"month" binding:"required"`
}

// QueuedTask 已投递的异步任务
type QueuedTask struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

func parseMonthValue(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if at, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// ListMonths 账期列表
func (h *Handler) ListMonths(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	onlyClosed, _ := strconv.ParseBool(c.DefaultQuery("only_closed", "false"))
	months, total, err := h.LedgerService.ListMonths(c.Request.Context(), repository.MonthListFilter{
		Page:       page,
		PageSize:   pageSize,
		SiteID:     shared.SiteID(c),
		OnlyClosed: onlyClosed,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, months, response.NewPagination(page, pageSize, total))
}

// OpenMonth 开账（已存在时直接返回）
func (h *Handler) OpenMonth(c *gin.Context) {
	var req OpenMonthRequest
	if !bindJSON(c, &req) {
		return
	}
	at, ok := parseMonthValue(req.Month)
	if !ok {
		response.BadRequest(c, "月份格式错误")
		return
	}
	month, err := h.LedgerService.OpenMonth(c.Request.Context(), shared.SiteID(c), at)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, month)
}

// GetCurrentMonth 当前开放账期
func (h *Handler) GetCurrentMonth(c *gin.Context) {
	month, err := h.LedgerService.GetOpenMonth(c.Request.Context(), shared.SiteID(c))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, month)
}

func (h *Handler) loadSiteMonth(c *gin.Context) (*models.Month, bool) {
	monthID, ok := paramID(c, "month_id")
	if !ok {
		return nil, false
	}
	month, err := h.LedgerService.GetMonth(c.Request.Context(), shared.SiteID(c), monthID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return nil, false
	}
	return month, true
}

// GetMonth 账期详情
func (h *Handler) GetMonth(c *gin.Context) {
	month, ok := h.loadSiteMonth(c)
	if !ok {
		return
	}
	response.Success(c, month)
}

// CloseMonth 关账；async=true 且队列可用时投递到关键队列
func (h *Handler) CloseMonth(c *gin.Context) {
	month, ok := h.loadSiteMonth(c)
	if !ok {
		return
	}
	if async, _ := strconv.ParseBool(c.Query("async")); async && h.QueueClient.Enabled() {
		info, err := h.QueueClient.EnqueueCloseMonth(queue.CloseMonthPayload{SiteID: month.SiteID, MonthID: month.ID})
		if err != nil {
			shared.RespondErrorWithMsg(c, response.CodeConflict, "关账任务投递失败", err)
			return
		}
		response.Success(c, QueuedTask{TaskID: info.ID, Queue: info.Queue})
		return
	}
	result, err := h.LedgerService.CloseMonth(c.Request.Context(), month.SiteID, month.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// RefreshMonth 重新汇总账期金额
func (h *Handler) RefreshMonth(c *gin.Context) {
	month, ok := h.loadSiteMonth(c)
	if !ok {
		return
	}
	refreshed, err := h.LedgerService.RefreshMonth(c.Request.Context(), month.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, refreshed)
}

// DetectTransitions 对账期执行等级晋升检测
func (h *Handler) DetectTransitions(c *gin.Context) {
	month, ok := h.loadSiteMonth(c)
	if !ok {
		return
	}
	transitions, err := h.TierTransitionService.DetectTransitions(c.Request.Context(), month.SiteID, month.ID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, transitions)
}
