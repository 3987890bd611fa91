package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/queue"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	container := provider.NewContainerWithDB(&config.Config{}, db)
	return NewConsumer(container), db
}

func TestHandleCloseMonthClosesOnce(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	ctx := context.Background()
	site := &models.Site{Name: "worker-site", CommissionWindowMonths: 12}
	if err := db.Create(site).Error; err != nil {
		t.Fatalf("create site failed: %v", err)
	}
	month, err := consumer.LedgerService.OpenMonth(ctx, site.ID, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("open month failed: %v", err)
	}

	task, err := queue.NewCloseMonthTask(queue.CloseMonthPayload{SiteID: site.ID, MonthID: month.ID})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleCloseMonth(ctx, task); err != nil {
		t.Fatalf("close month task failed: %v", err)
	}
	var reloaded models.Month
	if err := db.First(&reloaded, month.ID).Error; err != nil {
		t.Fatalf("reload month failed: %v", err)
	}
	if !reloaded.IsClosed() {
		t.Fatalf("month should be closed")
	}
	// 重复投递时视为已完成
	if err := consumer.handleCloseMonth(ctx, task); err != nil {
		t.Fatalf("second close should be skipped, got %v", err)
	}
	var count int64
	db.Model(&models.Month{}).Where("site_id = ?", site.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected current and next month, got %d", count)
	}
}

func TestHandleExpirePaymentsUsesRequestedAt(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	closedAt := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	payment := &models.Payment{SiteID: 1, UserID: 1, MonthID: 1, State: constants.PaymentStateAwaitingReceipt, ClosedAt: &closedAt}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	task, err := queue.NewExpirePaymentsTask(queue.ExpirePaymentsPayload{RequestedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleExpirePayments(context.Background(), task); err != nil {
		t.Fatalf("expire task failed: %v", err)
	}
	var reloaded models.Payment
	if err := db.First(&reloaded, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.State != constants.PaymentStateExpired {
		t.Fatalf("expected expired, got %s", reloaded.State)
	}
}

func TestHandleReconcileSkipsUnknownMode(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task, err := queue.NewReconcileTask(queue.ReconcilePayload{SiteID: 1, Mode: "bogus"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleReconcile(context.Background(), task); err != nil {
		t.Fatalf("unknown mode should be dropped, got %v", err)
	}
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task := asynq.NewTask(queue.TaskTierSweep, []byte("{not json"))
	err := consumer.handleTierSweep(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestSweepTiersWithoutOpenMonth(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	site := &models.Site{Name: "no-month"}
	if err := db.Create(site).Error; err != nil {
		t.Fatalf("create site failed: %v", err)
	}
	transitions, err := consumer.sweepTiers(context.Background(), site.ID, 0)
	if err != nil || len(transitions) != 0 {
		t.Fatalf("expected silent skip, got %v %v", transitions, err)
	}
}
