package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/queue"
	"github.com/teamledger/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
	now func() time.Time
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
		now:       time.Now,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCloseMonth, c.handleCloseMonth)
	mux.HandleFunc(queue.TaskTierSweep, c.handleTierSweep)
	mux.HandleFunc(queue.TaskReconcile, c.handleReconcile)
	mux.HandleFunc(queue.TaskExpirePayments, c.handleExpirePayments)
}

func decodePayload(task *asynq.Task, target interface{}) error {
	if err := json.Unmarshal(task.Payload(), target); err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}
	return nil
}

func (c *Consumer) handleCloseMonth(ctx context.Context, task *asynq.Task) error {
	var payload queue.CloseMonthPayload
	if err := decodePayload(task, &payload); err != nil {
		logger.Warnw("worker_close_month_unmarshal_failed", "error", err)
		return err
	}
	if payload.SiteID == 0 || payload.MonthID == 0 {
		logger.Debugw("worker_close_month_skip_invalid_payload", "site_id", payload.SiteID, "month_id", payload.MonthID)
		return nil
	}
	result, err := c.LedgerService.CloseMonth(ctx, payload.SiteID, payload.MonthID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMonthAlreadyClosed), errors.Is(err, service.ErrMonthNotFound):
			logger.Debugw("worker_close_month_skip", "site_id", payload.SiteID, "month_id", payload.MonthID, "reason", err.Error())
			return nil
		case errors.Is(err, service.ErrMonthClosing):
			logger.Infow("worker_close_month_busy", "site_id", payload.SiteID, "month_id", payload.MonthID)
			return err
		default:
			logger.Warnw("worker_close_month_failed", "site_id", payload.SiteID, "month_id", payload.MonthID, "error", err)
			return err
		}
	}
	logger.Infow("worker_close_month_done",
		"site_id", payload.SiteID,
		"month_id", payload.MonthID,
		"next_month_id", result.NextMonth.ID,
		"payments", len(result.Payments),
	)
	return nil
}

func (c *Consumer) handleTierSweep(ctx context.Context, task *asynq.Task) error {
	var payload queue.TierSweepPayload
	if err := decodePayload(task, &payload); err != nil {
		logger.Warnw("worker_tier_sweep_unmarshal_failed", "error", err)
		return err
	}
	if payload.SiteID == 0 {
		logger.Debugw("worker_tier_sweep_skip_invalid_payload", "site_id", payload.SiteID)
		return nil
	}
	_, err := c.sweepTiers(ctx, payload.SiteID, payload.MonthID)
	return err
}

// sweepTiers 对账期执行晋升检测，monthID 为 0 时取站点当前开放账期
func (c *Consumer) sweepTiers(ctx context.Context, siteID, monthID uint) ([]service.TierTransition, error) {
	if monthID == 0 {
		month, err := c.LedgerService.GetOpenMonth(ctx, siteID)
		if errors.Is(err, service.ErrMonthNotFound) {
			logger.Debugw("worker_tier_sweep_skip_no_open_month", "site_id", siteID)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		monthID = month.ID
	}
	transitions, err := c.TierTransitionService.DetectTransitions(ctx, siteID, monthID)
	if err != nil {
		logger.Warnw("worker_tier_sweep_failed", "site_id", siteID, "month_id", monthID, "error", err)
		return nil, err
	}
	if len(transitions) > 0 {
		logger.Infow("worker_tier_sweep_done", "site_id", siteID, "month_id", monthID, "transitions", len(transitions))
	}
	return transitions, nil
}

func (c *Consumer) handleReconcile(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReconcilePayload
	if err := decodePayload(task, &payload); err != nil {
		logger.Warnw("worker_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if payload.SiteID == 0 {
		logger.Debugw("worker_reconcile_skip_invalid_payload", "site_id", payload.SiteID)
		return nil
	}
	report, err := c.ReconcileService.Run(ctx, payload.SiteID, payload.UserID, payload.Mode)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			logger.Warnw("worker_reconcile_skip_invalid_mode", "site_id", payload.SiteID, "mode", payload.Mode)
			return nil
		}
		logger.Warnw("worker_reconcile_failed", "site_id", payload.SiteID, "user_id", payload.UserID, "error", err)
		return err
	}
	logger.Infow("worker_reconcile_done",
		"site_id", report.SiteID,
		"mode", report.Mode,
		"users", len(report.Users),
		"changed", report.Changed,
		"failed", report.Failed,
	)
	return nil
}

func (c *Consumer) handleExpirePayments(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExpirePaymentsPayload
	if err := decodePayload(task, &payload); err != nil {
		logger.Warnw("worker_expire_payments_unmarshal_failed", "error", err)
		return err
	}
	at := payload.RequestedAt
	if at.IsZero() {
		at = c.now()
	}
	if _, err := c.LedgerService.ExpireStalePayments(ctx, at); err != nil {
		logger.Warnw("worker_expire_payments_failed", "error", err)
		return err
	}
	return nil
}
