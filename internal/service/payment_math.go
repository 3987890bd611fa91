package service

import (
	"strings"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RefreshPaymentFields 根据原始字段重新计算结算单派生金额，可重复执行：
// 应税收入 = max(0, 佣金 + 奖金 - 行政扣款 - 运营成本)，应付 = 收入 + 税额 - 预扣。
// open 状态应付为 0 时降为 empty。
func RefreshPaymentFields(p *models.Payment) {
	if p == nil {
		return
	}
	income := p.Commission.Add(p.Premium.Decimal).
		Sub(p.AdminDeduction.Decimal).
		Sub(p.OperationalCosts.Decimal)
	if income.IsNegative() {
		income = decimal.Zero
	}
	income = income.Round(2)
	tax := income.Mul(p.TaxPercent).Div(hundred).Round(2)
	withholding := income.Mul(p.WithholdingPercent).Div(hundred).Round(2)
	payable := income.Add(tax).Sub(withholding)

	p.Income = models.NewMoneyFromDecimal(income)
	p.TaxAmount = models.NewMoneyFromDecimal(tax)
	p.WithholdingAmount = models.NewMoneyFromDecimal(withholding)
	p.Payable = models.NewMoneyFromDecimal(payable)

	if p.Payable.IsZero() && p.State == constants.PaymentStateOpen {
		p.State = constants.PaymentStateEmpty
	}
}

// paymentStateIndex 返回状态在规范顺序中的位置，不在顺序中返回 -1
func paymentStateIndex(state string) int {
	state = strings.TrimSpace(state)
	for i, item := range constants.PaymentStateOrder {
		if item == state {
			return i
		}
	}
	return -1
}

// CanTransitionPayment 判断结算单状态流转是否合法：只能向后，
// 唯一例外是 pending 退回 awaiting_receipt。
func CanTransitionPayment(from, to string) bool {
	fromIdx := paymentStateIndex(from)
	toIdx := paymentStateIndex(to)
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	if from == constants.PaymentStatePending && to == constants.PaymentStateAwaitingReceipt {
		return true
	}
	return toIdx > fromIdx
}

// paymentEditable 结算单进入 pending 之前允许调整原始字段
func paymentEditable(state string) bool {
	switch state {
	case constants.PaymentStateEmpty, constants.PaymentStateOpen, constants.PaymentStateAwaitingReceipt:
		return true
	default:
		return false
	}
}
