package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teamledger/internal/cache"
	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultCloseLeaseTTL = 10 * time.Minute

// LedgerService 月度账期与结算单服务
type LedgerService struct {
	monthRepo         repository.MonthRepository
	paymentRepo       repository.PaymentRepository
	userRepo          repository.UserRepository
	siteRepo          repository.SiteRepository
	movementRepo      repository.MovementRepository
	commissionService *CommissionService
	leaseTTL          time.Duration
	now               func() time.Time
}

// NewLedgerService 创建账期服务
func NewLedgerService(
	monthRepo repository.MonthRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	siteRepo repository.SiteRepository,
	movementRepo repository.MovementRepository,
	commissionService *CommissionService,
	leaseTTL time.Duration,
) *LedgerService {
	if leaseTTL <= 0 {
		leaseTTL = defaultCloseLeaseTTL
	}
	return &LedgerService{
		monthRepo:         monthRepo,
		paymentRepo:       paymentRepo,
		userRepo:          userRepo,
		siteRepo:          siteRepo,
		movementRepo:      movementRepo,
		commissionService: commissionService,
		leaseTTL:          leaseTTL,
		now:               time.Now,
	}
}

// CloseMonthResult 关账结果
type CloseMonthResult struct {
	Month     *models.Month    `json:"month"`
	NextMonth *models.Month    `json:"next_month"`
	Payments  []models.Payment `json:"payments"`
}

func (s *LedgerService) loadSite(siteID uint) (*models.Site, error) {
	site, err := s.siteRepo.GetByID(siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrSiteNotFound
	}
	return site, nil
}

// OpenMonth 打开包含指定日期的自然月账期，已存在则直接返回
func (s *LedgerService) OpenMonth(ctx context.Context, siteID uint, at time.Time) (*models.Month, error) {
	if _, err := s.loadSite(siteID); err != nil {
		return nil, err
	}
	startsAt := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	existing, err := s.monthRepo.GetByStart(siteID, startsAt)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	month := newMonth(siteID, startsAt)
	if err := s.monthRepo.Create(month); err != nil {
		return nil, err
	}
	return month, nil
}

func newMonth(siteID uint, startsAt time.Time) *models.Month {
	return &models.Month{
		SiteID:   siteID,
		Label:    models.MonthLabel(startsAt),
		StartsAt: startsAt,
		EndsAt:   startsAt.AddDate(0, 1, -1),
	}
}

// CloseMonth 关账：锁定账期、标记关账、创建下一个账期并生成结算单，全部在同一事务内完成。
// 同一站点的并发关账通过 Redis 租约互斥，账期行另加行锁。
func (s *LedgerService) CloseMonth(ctx context.Context, siteID, monthID uint) (*CloseMonthResult, error) {
	site, err := s.loadSite(siteID)
	if err != nil {
		return nil, err
	}
	lease, err := cache.AcquireLease(ctx, fmt.Sprintf("%s:%d", constants.LeaseKeyCloseMonth, siteID), s.leaseTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLeaseHeld) {
			return nil, ErrMonthClosing
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logger.Warnw("ledger_close_lease_release_failed", "site_id", siteID, "error", err)
		}
	}()

	result := &CloseMonthResult{}
	err = s.monthRepo.Transaction(func(tx *gorm.DB) error {
		monthRepo := s.monthRepo.WithTx(tx)
		month, err := monthRepo.GetByIDForUpdate(monthID)
		if err != nil {
			return err
		}
		if month == nil || month.SiteID != siteID {
			return ErrMonthNotFound
		}
		if month.IsClosed() {
			return ErrMonthAlreadyClosed
		}

		now := s.now()
		month.ClosedAt = &now
		if err := monthRepo.Update(month); err != nil {
			return err
		}

		nextStart, _ := models.NextMonthRange(month.StartsAt)
		next, err := monthRepo.GetByStart(siteID, nextStart)
		if err != nil {
			return err
		}
		if next == nil {
			next = newMonth(siteID, nextStart)
			if err := monthRepo.Create(next); err != nil {
				return err
			}
		}

		payments, err := s.generatePayments(ctx, tx, site, month, now)
		if err != nil {
			return err
		}
		if err := s.refreshMonthTotals(tx, month, now); err != nil {
			return err
		}
		result.Month = month
		result.NextMonth = next
		result.Payments = payments
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("ledger_month_closed",
		"site_id", siteID,
		"month_id", monthID,
		"next_month_id", result.NextMonth.ID,
		"payments", len(result.Payments),
	)
	return result, nil
}

// GeneratePayments 为账期生成结算单（已有未作废结算单的成员跳过）
func (s *LedgerService) GeneratePayments(ctx context.Context, tx *gorm.DB, siteID, monthID uint) ([]models.Payment, error) {
	site, err := s.loadSite(siteID)
	if err != nil {
		return nil, err
	}
	month, err := s.monthRepo.WithTx(tx).GetByID(monthID)
	if err != nil {
		return nil, err
	}
	if month == nil || month.SiteID != siteID {
		return nil, ErrMonthNotFound
	}
	return s.generatePayments(ctx, tx, site, month, s.now())
}

func (s *LedgerService) generatePayments(ctx context.Context, tx *gorm.DB, site *models.Site, month *models.Month, closedAt time.Time) ([]models.Payment, error) {
	rows, err := s.commissionService.ByUserLevel(tx, repository.CommissionFilter{
		SiteID:   site.ID,
		MonthIDs: []uint{month.ID},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Payment{}, nil
	}
	userIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	users, err := s.userRepo.WithTx(tx).ListByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	userMap := make(map[uint]*models.User, len(users))
	for i := range users {
		userMap[users[i].ID] = &users[i]
	}

	paymentRepo := s.paymentRepo.WithTx(tx)
	payments := make([]models.Payment, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user := userMap[row.UserID]
		if user == nil || user.Deactivated() {
			continue
		}
		existing, err := paymentRepo.ListByUserMonth(user.ID, month.ID)
		if err != nil {
			return nil, err
		}
		if activePayment(existing) != nil {
			logger.Warnw("ledger_payment_already_generated", "user_id", user.ID, "month_id", month.ID)
			continue
		}

		payment := buildPayment(site, month, user, row)
		RefreshPaymentFields(&payment)
		advanceNewPayment(&payment, closedAt)
		if err := paymentRepo.Create(&payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// buildPayment 由分层佣金构建结算单，层级明细至少补足 3 层。
// 有计佣记录的层级按边上实际比例展示，其余层级使用成员当前有效比例。
func buildPayment(site *models.Site, month *models.Month, user *models.User, commission UserLevelCommission) models.Payment {
	depth := constants.PaymentMinLevels
	for _, level := range commission.Levels {
		if level.Level > depth {
			depth = level.Level
		}
	}
	rates := user.EffectiveRates()
	levels := make(models.LevelBreakdown, depth)
	for i := range levels {
		levels[i] = models.LevelLine{Level: i + 1, Percent: rates.Percent(i + 1), Amount: models.ZeroMoney()}
	}
	for _, level := range commission.Levels {
		if level.Level < 1 {
			continue
		}
		line := &levels[level.Level-1]
		line.Count = level.Count
		line.Amount = models.NewMoneyFromDecimal(level.Amount)
		if !level.Rate.IsZero() {
			line.Percent = level.Rate.Mul(decimal.NewFromInt(100))
		}
	}

	adminDeduction := site.AdminDeductionDefault
	if user.MonthlyAdminDeduction != nil {
		adminDeduction = *user.MonthlyAdminDeduction
	}
	return models.Payment{
		SiteID:             site.ID,
		UserID:             user.ID,
		MonthID:            month.ID,
		TierID:             user.TierID,
		NIF:                user.NIF,
		Levels:             levels,
		Commission:         levels.Total(),
		Premium:            models.OrZero(user.MonthlyPremium),
		AdminDeduction:     adminDeduction,
		OperationalCosts:   models.ZeroMoney(),
		TaxPercent:         site.TaxPercentDefault,
		WithholdingPercent: site.WithholdingPercentDefault,
		State:              constants.PaymentStateOpen,
	}
}

// advanceNewPayment 新结算单刷新后仍有应付金额时进入待收据状态
func advanceNewPayment(p *models.Payment, closedAt time.Time) {
	if p.State == constants.PaymentStateOpen && p.Payable.IsPositive() {
		p.State = constants.PaymentStateAwaitingReceipt
		p.ClosedAt = &closedAt
	}
}

// activePayment 返回最近一张非作废的常规结算单
func activePayment(payments []models.Payment) *models.Payment {
	for i := len(payments) - 1; i >= 0; i-- {
		if payments[i].State != constants.PaymentStateVoided && !payments[i].IsCorrection {
			return &payments[i]
		}
	}
	return nil
}

// RefreshPayment 重新计算并保存结算单派生字段
func (s *LedgerService) RefreshPayment(ctx context.Context, paymentID uint) (*models.Payment, error) {
	var payment *models.Payment
	err := s.paymentRepo.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		current, err := paymentRepo.GetByIDForUpdate(paymentID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPaymentNotFound
		}
		RefreshPaymentFields(current)
		current.UpdatedAt = s.now()
		if err := paymentRepo.Update(current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkPayment 推进结算单状态
func (s *LedgerService) MarkPayment(ctx context.Context, paymentID uint, state string) (*models.Payment, error) {
	target := strings.TrimSpace(state)
	if paymentStateIndex(target) < 0 {
		return nil, ErrPaymentStateInvalid
	}
	var payment *models.Payment
	err := s.paymentRepo.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		current, err := paymentRepo.GetByIDForUpdate(paymentID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPaymentNotFound
		}
		if !CanTransitionPayment(current.State, target) {
			return fmt.Errorf("%w: %s -> %s", ErrPaymentStateInvalid, current.State, target)
		}
		now := s.now()
		current.State = target
		switch target {
		case constants.PaymentStatePaid:
			current.PaidAt = &now
		case constants.PaymentStateAwaitingReceipt:
			current.ClosedAt = &now
		}
		current.UpdatedAt = now
		if err := paymentRepo.Update(current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// EditPaymentInput 调整结算单原始字段
type EditPaymentInput struct {
	Premium            *models.Money
	AdminDeduction     *models.Money
	OperationalCosts   *models.Money
	TaxPercent         *decimal.Decimal
	WithholdingPercent *decimal.Decimal
	Note               *string
}

// EditPayment 调整结算单原始字段并刷新派生金额，进入 pending 后不可编辑
func (s *LedgerService) EditPayment(ctx context.Context, paymentID uint, input EditPaymentInput) (*models.Payment, error) {
	var payment *models.Payment
	err := s.paymentRepo.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		current, err := paymentRepo.GetByIDForUpdate(paymentID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPaymentNotFound
		}
		if !paymentEditable(current.State) {
			return ErrPaymentNotOpen
		}
		if input.Premium != nil {
			current.Premium = models.NewMoneyFromDecimal(input.Premium.Decimal)
		}
		if input.AdminDeduction != nil {
			current.AdminDeduction = models.NewMoneyFromDecimal(input.AdminDeduction.Decimal)
		}
		if input.OperationalCosts != nil {
			current.OperationalCosts = models.NewMoneyFromDecimal(input.OperationalCosts.Decimal)
		}
		if input.TaxPercent != nil {
			current.TaxPercent = *input.TaxPercent
		}
		if input.WithholdingPercent != nil {
			current.WithholdingPercent = *input.WithholdingPercent
		}
		if input.Note != nil {
			current.Note = strings.TrimSpace(*input.Note)
		}
		RefreshPaymentFields(current)
		current.UpdatedAt = s.now()
		if err := paymentRepo.Update(current); err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ExpireStalePayments 待收据超过 2 年的结算单标记为过期
func (s *LedgerService) ExpireStalePayments(ctx context.Context, now time.Time) (int64, error) {
	before := now.AddDate(-constants.PaymentExpireYears, 0, 0)
	ids, err := s.paymentRepo.ListIDsByStateClosedBefore(constants.PaymentStateAwaitingReceipt, before)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	affected, err := s.paymentRepo.UpdateState(ids, constants.PaymentStateExpired, nil)
	if err != nil {
		return 0, err
	}
	logger.Infow("ledger_payments_expired", "count", affected, "closed_before", before)
	return affected, nil
}

// CorrectionResult 结算单重算结果
type CorrectionResult struct {
	Changed    bool            `json:"changed"`
	Correction bool            `json:"correction"`
	Voided     int64           `json:"voided"`
	Payment    *models.Payment `json:"payment,omitempty"`
}

// CorrectPayment 重新计算成员在账期内的佣金：
// 原结算单已支付时作废未支付的补差单并新建补差单（运营成本 = 已付佣金）；
// 未支付且金额有变化时作废原单并重建；无变化时不做任何修改。
func (s *LedgerService) CorrectPayment(ctx context.Context, userID, monthID uint) (*CorrectionResult, error) {
	month, err := s.monthRepo.GetByID(monthID)
	if err != nil {
		return nil, err
	}
	if month == nil {
		return nil, ErrMonthNotFound
	}
	site, err := s.loadSite(month.SiteID)
	if err != nil {
		return nil, err
	}

	result := &CorrectionResult{}
	err = s.paymentRepo.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.WithTx(tx).GetByID(userID)
		if err != nil {
			return err
		}
		if user == nil || user.SiteID != site.ID {
			return ErrUserNotFound
		}
		if user.Deactivated() {
			return nil
		}
		paymentRepo := s.paymentRepo.WithTx(tx)
		payments, err := paymentRepo.ListByUserMonth(user.ID, month.ID)
		if err != nil {
			return err
		}
		current := activePayment(payments)
		if current == nil {
			return ErrPaymentNotFound
		}

		rows, err := s.commissionService.ByUserLevel(tx, repository.CommissionFilter{
			SiteID:   site.ID,
			MonthIDs: []uint{month.ID},
			UserIDs:  []uint{user.ID},
		})
		if err != nil {
			return err
		}
		commission := UserLevelCommission{UserID: user.ID, Amount: decimal.Zero}
		if len(rows) > 0 {
			commission = rows[0]
		}

		fresh := buildPayment(site, month, user, commission)
		correction := current.State == constants.PaymentStatePaid
		if !correction && fresh.Commission.Equal(current.Commission.Decimal) && fresh.Levels.Equal(current.Levels) {
			return nil
		}

		voidIDs := make([]uint, 0)
		for _, item := range payments {
			if item.State == constants.PaymentStateVoided || item.State == constants.PaymentStatePaid {
				continue
			}
			if correction && !item.IsCorrection {
				continue
			}
			voidIDs = append(voidIDs, item.ID)
		}
		voided, err := paymentRepo.UpdateState(voidIDs, constants.PaymentStateVoided, nil)
		if err != nil {
			return err
		}

		fresh.NIF = current.NIF
		fresh.TierID = current.TierID
		if correction {
			fresh.Premium = models.ZeroMoney()
			fresh.AdminDeduction = models.ZeroMoney()
			fresh.OperationalCosts = current.Commission
			fresh.IsCorrection = true
			fresh.CorrectsID = &current.ID
		} else {
			fresh.Premium = current.Premium
			fresh.AdminDeduction = current.AdminDeduction
		}
		RefreshPaymentFields(&fresh)
		advanceNewPayment(&fresh, s.now())
		if err := paymentRepo.Create(&fresh); err != nil {
			return err
		}

		result.Changed = true
		result.Correction = correction
		result.Voided = voided
		result.Payment = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Infow("ledger_payment_corrected",
			"user_id", userID,
			"month_id", monthID,
			"correction", result.Correction,
			"voided", result.Voided,
		)
	}
	return result, nil
}

// RefreshMonth 刷新账期汇总字段
func (s *LedgerService) RefreshMonth(ctx context.Context, monthID uint) (*models.Month, error) {
	var month *models.Month
	err := s.monthRepo.Transaction(func(tx *gorm.DB) error {
		current, err := s.monthRepo.WithTx(tx).GetByIDForUpdate(monthID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrMonthNotFound
		}
		if err := s.refreshMonthTotals(tx, current, s.now()); err != nil {
			return err
		}
		month = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return month, nil
}

// refreshMonthTotals 佣金合计、供应商分成（一年内激活卡片净充值额的 30%）与结算单汇总
func (s *LedgerService) refreshMonthTotals(tx *gorm.DB, month *models.Month, now time.Time) error {
	commissions, err := s.commissionService.Sum(tx, repository.CommissionFilter{
		SiteID:   month.SiteID,
		MonthIDs: []uint{month.ID},
	})
	if err != nil {
		return err
	}
	since := month.StartsAt.AddDate(-constants.SupplierActivationWindowYears, 0, 0)
	supplierBase, err := s.movementRepo.WithTx(tx).SumNetForActivatedSince(month.SiteID, month.ID, since)
	if err != nil {
		return err
	}
	totals, err := s.paymentRepo.WithTx(tx).SumByMonth(month.ID)
	if err != nil {
		return err
	}

	month.Commissions = models.NewMoneyFromDecimal(commissions.Amount)
	month.SupplierShare = models.NewMoneyFromDecimal(supplierBase.Mul(decimal.RequireFromString(constants.SupplierShareRate)))
	month.Premiums = models.NewMoneyFromDecimal(totals.Premiums)
	month.AdminDeductions = models.NewMoneyFromDecimal(totals.AdminDeductions)
	month.OperationalCosts = models.NewMoneyFromDecimal(totals.OperationalCosts)
	month.TotalPayable = models.NewMoneyFromDecimal(totals.Payable)
	month.RefreshedAt = &now
	month.UpdatedAt = now
	return s.monthRepo.WithTx(tx).Update(month)
}

// GetMonth 获取账期
func (s *LedgerService) GetMonth(ctx context.Context, siteID, monthID uint) (*models.Month, error) {
	month, err := s.monthRepo.GetByID(monthID)
	if err != nil {
		return nil, err
	}
	if month == nil || (siteID != 0 && month.SiteID != siteID) {
		return nil, ErrMonthNotFound
	}
	return month, nil
}

// GetOpenMonth 获取站点当前未关账的账期
func (s *LedgerService) GetOpenMonth(ctx context.Context, siteID uint) (*models.Month, error) {
	month, err := s.monthRepo.GetOpen(siteID)
	if err != nil {
		return nil, err
	}
	if month == nil {
		return nil, ErrMonthNotFound
	}
	return month, nil
}

// GetLastClosedMonth 获取站点最近关账的账期
func (s *LedgerService) GetLastClosedMonth(ctx context.Context, siteID uint) (*models.Month, error) {
	month, err := s.monthRepo.GetLastClosed(siteID)
	if err != nil {
		return nil, err
	}
	if month == nil {
		return nil, ErrMonthNotFound
	}
	return month, nil
}

// ListMonths 账期列表
func (s *LedgerService) ListMonths(ctx context.Context, filter repository.MonthListFilter) ([]models.Month, int64, error) {
	return s.monthRepo.List(filter)
}

// GetPayment 获取结算单
func (s *LedgerService) GetPayment(ctx context.Context, siteID, paymentID uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || (siteID != 0 && payment.SiteID != siteID) {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListPayments 结算单列表
func (s *LedgerService) ListPayments(ctx context.Context, filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.List(filter)
}
