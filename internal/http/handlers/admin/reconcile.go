package admin

import (
	"strconv"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/queue"

	"github.com/gin-gonic/gin"
)

// ReconcileRequest 对账请求；user_id 为 0 时处理站点全部成员
type ReconcileRequest struct {
	UserID uint   `json:"user_id"`
	Mode   string `json:"mode"`
}

// Reconcile 比对或重建推荐树；dry_run 只报告差异
func (h *Handler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = constants.ReconcileModeDryRun
	}
	siteID := shared.SiteID(c)
	if async, _ := strconv.ParseBool(c.Query("async")); async && h.QueueClient.Enabled() {
		info, err := h.QueueClient.EnqueueReconcile(queue.ReconcilePayload{SiteID: siteID, UserID: req.UserID, Mode: req.Mode})
		if err != nil {
			shared.RespondErrorWithMsg(c, response.CodeConflict, "对账任务投递失败", err)
			return
		}
		response.Success(c, QueuedTask{TaskID: info.ID, Queue: info.Queue})
		return
	}
	report, err := h.ReconcileService.Run(c.Request.Context(), siteID, req.UserID, req.Mode)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	shared.RequestLog(c).Infow("reconcile_requested",
		"operator", c.GetString(shared.ContextKeyOperator),
		"site_id", siteID,
		"mode", report.Mode,
		"changed", report.Changed,
	)
	response.Success(c, report)
}
