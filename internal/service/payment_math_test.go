package service

import (
	"testing"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestRefreshPaymentFields(t *testing.T) {
	cases := []struct {
		name        string
		commission  string
		premium     string
		admin       string
		op          string
		tax         int64
		withholding int64
		state       string
		wantIncome  string
		wantPayable string
		wantState   string
	}{
		{"plain", "120", "0", "25", "0", 0, 0, constants.PaymentStateOpen, "95", "95", constants.PaymentStateOpen},
		{"clamped", "10", "0", "25", "0", 23, 25, constants.PaymentStateOpen, "0", "0", constants.PaymentStateEmpty},
		{"taxed", "100", "20", "10", "10", 23, 25, constants.PaymentStateOpen, "100", "98", constants.PaymentStateOpen},
		{"keeps_awaiting", "0", "0", "0", "0", 0, 0, constants.PaymentStateAwaitingReceipt, "0", "0", constants.PaymentStateAwaitingReceipt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &models.Payment{
				Commission:         models.MustMoney(tc.commission),
				Premium:            models.MustMoney(tc.premium),
				AdminDeduction:     models.MustMoney(tc.admin),
				OperationalCosts:   models.MustMoney(tc.op),
				TaxPercent:         decimal.NewFromInt(tc.tax),
				WithholdingPercent: decimal.NewFromInt(tc.withholding),
				State:              tc.state,
			}
			RefreshPaymentFields(p)
			if !moneyEquals(p.Income, tc.wantIncome) || !moneyEquals(p.Payable, tc.wantPayable) {
				t.Fatalf("income=%s payable=%s", p.Income, p.Payable)
			}
			if p.State != tc.wantState {
				t.Fatalf("state want %s got %s", tc.wantState, p.State)
			}
			snapshot := *p
			RefreshPaymentFields(p)
			if !p.Payable.Equal(snapshot.Payable.Decimal) || p.State != snapshot.State {
				t.Fatalf("refresh is not idempotent")
			}
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{constants.PaymentStateEmpty, constants.PaymentStateOpen, true},
		{constants.PaymentStateOpen, constants.PaymentStateAwaitingReceipt, true},
		{constants.PaymentStateAwaitingReceipt, constants.PaymentStatePaid, true},
		{constants.PaymentStatePending, constants.PaymentStateAwaitingReceipt, true},
		{constants.PaymentStatePaid, constants.PaymentStatePending, false},
		{constants.PaymentStateOpen, constants.PaymentStateOpen, false},
		{constants.PaymentStateOpen, constants.PaymentStateVoided, false},
		{constants.PaymentStateExpired, constants.PaymentStatePaid, false},
	}
	for _, tc := range cases {
		if got := CanTransitionPayment(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s want %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
