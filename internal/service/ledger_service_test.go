package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
)

type closingFixture struct {
	site  *models.Site
	month *models.Month
	paid  *models.User
	empty *models.User
	card  *models.Card
}

// setupClosingFixture 成员 paid 本月佣金 120，成员 empty 佣金 0，站点默认行政扣款 25
func setupClosingFixture(t *testing.T, env *ledgerTestEnv) closingFixture {
	t.Helper()
	site := createTestSite(t, env.db, "25")
	tier := createTestTier(t, env.db, site.ID, "A", 0, 10, 5, 2)
	month := createTestMonth(t, env.db, site.ID, 2026, time.January)

	paid := createTestUser(t, env.db, site.ID, tier.ID, "paid")
	empty := createTestUser(t, env.db, site.ID, tier.ID, "empty")
	card := createTestCard(t, env.db, site.ID, uintPtr(paid.ID), nil)
	other := createTestCard(t, env.db, site.ID, uintPtr(empty.ID), nil)
	createTestEdge(t, env.db, paid.ID, card.ID, 1, "0.1")
	createTestEdge(t, env.db, empty.ID, other.ID, 1, "0")
	createTestMovement(t, env.db, month, card.ID, "1200")
	createTestMovement(t, env.db, month, other.ID, "50")
	return closingFixture{site: site, month: month, paid: paid, empty: empty, card: card}
}

func paymentFor(t *testing.T, payments []models.Payment, userID uint) models.Payment {
	t.Helper()
	for _, payment := range payments {
		if payment.UserID == userID {
			return payment
		}
	}
	t.Fatalf("payment for user %d not found in %+v", userID, payments)
	return models.Payment{}
}

func TestCloseMonthGeneratesPaymentsAndNextMonth(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)

	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	if result.Month.ClosedAt == nil {
		t.Fatalf("month should be closed")
	}
	wantNext := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if result.NextMonth == nil || !result.NextMonth.StartsAt.Equal(wantNext) {
		t.Fatalf("next month want %s got %+v", wantNext, result.NextMonth)
	}
	if len(result.Payments) != 2 {
		t.Fatalf("payments want 2 got %d", len(result.Payments))
	}

	paid := paymentFor(t, result.Payments, fx.paid.ID)
	if !moneyEquals(paid.Commission, "120") || !moneyEquals(paid.Payable, "95") {
		t.Fatalf("unexpected paid payment: commission=%s payable=%s", paid.Commission, paid.Payable)
	}
	if paid.State != constants.PaymentStateAwaitingReceipt || paid.ClosedAt == nil {
		t.Fatalf("positive payment should await receipt, got %s", paid.State)
	}
	if len(paid.Levels) != constants.PaymentMinLevels {
		t.Fatalf("levels should be padded to %d, got %d", constants.PaymentMinLevels, len(paid.Levels))
	}
	if line := paid.Levels.At(1); line.Count != 1 || !moneyEquals(line.Amount, "120") {
		t.Fatalf("unexpected level 1 line: %+v", line)
	}

	empty := paymentFor(t, result.Payments, fx.empty.ID)
	if empty.State != constants.PaymentStateEmpty || !empty.Payable.IsZero() {
		t.Fatalf("zero payment should be empty, got state=%s payable=%s", empty.State, empty.Payable)
	}

	if !moneyEquals(result.Month.Commissions, "120") {
		t.Fatalf("month commissions want 120 got %s", result.Month.Commissions)
	}
	if !moneyEquals(result.Month.TotalPayable, "95") || !moneyEquals(result.Month.AdminDeductions, "25") {
		t.Fatalf("month totals unexpected: payable=%s admin=%s", result.Month.TotalPayable, result.Month.AdminDeductions)
	}
	// 两张卡片都在一年内激活：0.3 * (1200 + 50)
	if !moneyEquals(result.Month.SupplierShare, "375") {
		t.Fatalf("supplier share want 375 got %s", result.Month.SupplierShare)
	}
}

func TestCloseMonthBreakdownUsesAppliedEdgeRate(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	// 成员比例已改为 20,7，但本月计佣的边仍为 10%
	if err := env.db.Model(&models.User{}).Where("id = ?", fx.paid.ID).
		Update("custom_rates", models.NewRateVectorFromInts(20, 7)).Error; err != nil {
		t.Fatalf("set custom rates failed: %v", err)
	}

	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	paid := paymentFor(t, result.Payments, fx.paid.ID)
	if line := paid.Levels.At(1); !line.Percent.Equal(decimal.NewFromInt(10)) || !moneyEquals(line.Amount, "120") {
		t.Fatalf("level 1 should show applied edge percent 10: %+v", line)
	}
	if line := paid.Levels.At(2); !line.Percent.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("level 2 without commission should fall back to member rate 7: %+v", line)
	}
}

func TestCloseMonthTwiceIsRejected(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)

	if _, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	_, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if !errors.Is(err, ErrMonthAlreadyClosed) {
		t.Fatalf("want ErrMonthAlreadyClosed got %v", err)
	}

	var months int64
	if err := env.db.Model(&models.Month{}).Where("site_id = ?", fx.site.ID).Count(&months).Error; err != nil {
		t.Fatalf("count months failed: %v", err)
	}
	if months != 2 {
		t.Fatalf("months want 2 got %d", months)
	}
	var payments int64
	if err := env.db.Model(&models.Payment{}).Where("month_id = ?", fx.month.ID).Count(&payments).Error; err != nil {
		t.Fatalf("count payments failed: %v", err)
	}
	if payments != 2 {
		t.Fatalf("payments want 2 got %d", payments)
	}
}

func TestRefreshPaymentIsIdempotent(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	payment := paymentFor(t, result.Payments, fx.paid.ID)

	first, err := env.ledger.RefreshPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	second, err := env.ledger.RefreshPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if !first.Payable.Equal(second.Payable.Decimal) || !first.Income.Equal(second.Income.Decimal) || first.State != second.State {
		t.Fatalf("refresh not idempotent: %+v vs %+v", first, second)
	}
	if !moneyEquals(second.Payable, "95") {
		t.Fatalf("payable changed after refresh: %s", second.Payable)
	}
}

func TestMarkPaymentStateMachine(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	payment := paymentFor(t, result.Payments, fx.paid.ID)

	steps := []struct {
		state string
		ok    bool
	}{
		{constants.PaymentStatePending, true},
		{constants.PaymentStateAwaitingReceipt, true},
		{constants.PaymentStateOpen, false},
		{constants.PaymentStatePending, true},
		{constants.PaymentStatePaid, true},
		{constants.PaymentStatePending, false},
		{constants.PaymentStateVoided, false},
	}
	for _, step := range steps {
		updated, err := env.ledger.MarkPayment(ctx, payment.ID, step.state)
		if step.ok && err != nil {
			t.Fatalf("transition to %s failed: %v", step.state, err)
		}
		if !step.ok {
			if !errors.Is(err, ErrPaymentStateInvalid) {
				t.Fatalf("transition to %s want ErrPaymentStateInvalid got %v", step.state, err)
			}
			continue
		}
		if updated.State != step.state {
			t.Fatalf("state want %s got %s", step.state, updated.State)
		}
	}

	final, err := env.ledger.GetPayment(ctx, fx.site.ID, payment.ID)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if final.State != constants.PaymentStatePaid || final.PaidAt == nil {
		t.Fatalf("payment should be paid with paid_at, got %+v", final)
	}
}

func TestEditPaymentRefreshesDerivedFields(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	payment := paymentFor(t, result.Payments, fx.paid.ID)

	premium := models.MustMoney("5")
	edited, err := env.ledger.EditPayment(ctx, payment.ID, EditPaymentInput{Premium: &premium})
	if err != nil {
		t.Fatalf("edit payment failed: %v", err)
	}
	if !moneyEquals(edited.Payable, "100") {
		t.Fatalf("payable want 100 got %s", edited.Payable)
	}

	if _, err := env.ledger.MarkPayment(ctx, payment.ID, constants.PaymentStatePending); err != nil {
		t.Fatalf("mark pending failed: %v", err)
	}
	if _, err := env.ledger.EditPayment(ctx, payment.ID, EditPaymentInput{Premium: &premium}); !errors.Is(err, ErrPaymentNotOpen) {
		t.Fatalf("want ErrPaymentNotOpen got %v", err)
	}
}

func TestCorrectPaymentRebuildsUnpaidPayment(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	if _, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID); err != nil {
		t.Fatalf("close month failed: %v", err)
	}

	unchanged, err := env.ledger.CorrectPayment(ctx, fx.paid.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("correct unchanged failed: %v", err)
	}
	if unchanged.Changed {
		t.Fatalf("unchanged commission should not produce a new payment")
	}

	createTestMovement(t, env.db, fx.month, fx.card.ID, "300")
	result, err := env.ledger.CorrectPayment(ctx, fx.paid.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("correct payment failed: %v", err)
	}
	if !result.Changed || result.Correction || result.Voided != 1 {
		t.Fatalf("unexpected correction result: %+v", result)
	}
	if !moneyEquals(result.Payment.Commission, "150") || !moneyEquals(result.Payment.Payable, "125") {
		t.Fatalf("rebuilt payment unexpected: commission=%s payable=%s", result.Payment.Commission, result.Payment.Payable)
	}

	payments, err := env.ledger.paymentRepo.ListByUserMonth(fx.paid.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	active := 0
	for _, payment := range payments {
		if payment.State != constants.PaymentStateVoided {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("exactly one active payment expected, got %d", active)
	}
}

func TestCorrectPaymentAfterPaidCreatesCorrection(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	original := paymentFor(t, result.Payments, fx.paid.ID)
	if _, err := env.ledger.MarkPayment(ctx, original.ID, constants.PaymentStatePaid); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	createTestMovement(t, env.db, fx.month, fx.card.ID, "300")
	correction, err := env.ledger.CorrectPayment(ctx, fx.paid.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("correct payment failed: %v", err)
	}
	if !correction.Correction || correction.Payment == nil || !correction.Payment.IsCorrection {
		t.Fatalf("expected a correction payment, got %+v", correction)
	}
	if correction.Payment.CorrectsID == nil || *correction.Payment.CorrectsID != original.ID {
		t.Fatalf("correction should reference original payment")
	}
	if !moneyEquals(correction.Payment.OperationalCosts, "120") || !moneyEquals(correction.Payment.Payable, "30") {
		t.Fatalf("correction amounts unexpected: op=%s payable=%s", correction.Payment.OperationalCosts, correction.Payment.Payable)
	}

	stored, err := env.ledger.GetPayment(ctx, 0, original.ID)
	if err != nil {
		t.Fatalf("get original failed: %v", err)
	}
	if stored.State != constants.PaymentStatePaid {
		t.Fatalf("paid payment must never be voided, got %s", stored.State)
	}
}

func TestCorrectPaymentWithoutPayment(t *testing.T) {
	env := setupLedgerServiceTest(t)
	fx := setupClosingFixture(t, env)
	_, err := env.ledger.CorrectPayment(context.Background(), fx.paid.ID, fx.month.ID)
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("want ErrPaymentNotFound got %v", err)
	}
}

func TestExpireStalePayments(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	fx := setupClosingFixture(t, env)
	result, err := env.ledger.CloseMonth(ctx, fx.site.ID, fx.month.ID)
	if err != nil {
		t.Fatalf("close month failed: %v", err)
	}
	payment := paymentFor(t, result.Payments, fx.paid.ID)

	affected, err := env.ledger.ExpireStalePayments(ctx, time.Now())
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("fresh payment should not expire, affected %d", affected)
	}
	affected, err = env.ledger.ExpireStalePayments(ctx, time.Now().AddDate(2, 1, 0))
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one expired payment, got %d", affected)
	}
	stored, err := env.ledger.GetPayment(ctx, fx.site.ID, payment.ID)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if stored.State != constants.PaymentStateExpired {
		t.Fatalf("state want expired got %s", stored.State)
	}
}

func TestOpenMonthReturnsExisting(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	site := createTestSite(t, env.db, "0")

	first, err := env.ledger.OpenMonth(ctx, site.ID, time.Date(2026, time.March, 17, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("open month failed: %v", err)
	}
	second, err := env.ledger.OpenMonth(ctx, site.ID, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("reopen month failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same month, got %d and %d", first.ID, second.ID)
	}
	if first.EndsAt.Day() != 31 {
		t.Fatalf("march should end on the 31st, got %s", first.EndsAt)
	}
	open, err := env.ledger.GetOpenMonth(ctx, site.ID)
	if err != nil || open.ID != first.ID {
		t.Fatalf("open month lookup failed: %v %+v", err, open)
	}
}
