package repository

import (
	"errors"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 结算单数据访问接口
type PaymentRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PaymentRepository

	GetByID(id uint) (*models.Payment, error)
	GetByIDForUpdate(id uint) (*models.Payment, error)
	ListByUserMonth(userID, monthID uint) ([]models.Payment, error)
	ListByMonth(monthID uint) ([]models.Payment, error)
	List(filter PaymentListFilter) ([]models.Payment, int64, error)
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	UpdateState(ids []uint, state string, updates map[string]interface{}) (int64, error)
	ListIDsByStateClosedBefore(state string, before time.Time) ([]uint, error)
	SumByMonth(monthID uint) (PaymentTotalsRow, error)
}

// PaymentTotalsRow 账期结算单汇总
type PaymentTotalsRow struct {
	Premiums         decimal.Decimal
	AdminDeductions  decimal.Decimal
	OperationalCosts decimal.Decimal
	Payable          decimal.Decimal
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建结算单仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPaymentRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 根据 ID 获取结算单
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Preload("User").Preload("Month").First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate 加锁获取结算单
func (r *GormPaymentRepository) GetByIDForUpdate(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListByUserMonth 获取成员在账期内的全部结算单（含作废），按创建顺序
func (r *GormPaymentRepository) ListByUserMonth(userID, monthID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("user_id = ? AND month_id = ?", userID, monthID).
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByMonth 获取账期内未作废的结算单
func (r *GormPaymentRepository) ListByMonth(monthID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("month_id = ? AND state <> ?", monthID, constants.PaymentStateVoided).
		Order("user_id ASC").
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// List 结算单列表
func (r *GormPaymentRepository) List(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})
	if filter.SiteID != 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.MonthID != 0 {
		query = query.Where("month_id = ?", filter.MonthID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	} else if !filter.WithVoided {
		query = query.Where("state <> ?", constants.PaymentStateVoided)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var payments []models.Payment
	if err := query.Preload("User").Order("id DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Create 创建结算单
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Omit("User", "Month").Create(payment).Error
}

// Update 更新结算单
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Omit("User", "Month").Save(payment).Error
}

// UpdateState 批量更新结算单状态
func (r *GormPaymentRepository) UpdateState(ids []uint, state string, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values := map[string]interface{}{
		"state":      state,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		values[key] = value
	}
	result := r.db.Model(&models.Payment{}).Where("id IN ?", ids).Updates(values)
	return result.RowsAffected, result.Error
}

// ListIDsByStateClosedBefore 获取指定状态且关账时间早于 before 的结算单
func (r *GormPaymentRepository) ListIDsByStateClosedBefore(state string, before time.Time) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Payment{}).
		Where("state = ? AND closed_at IS NOT NULL AND closed_at < ?", state, before).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SumByMonth 汇总账期内未作废结算单的金额，扣款只统计应付大于 0 的结算单
func (r *GormPaymentRepository) SumByMonth(monthID uint) (PaymentTotalsRow, error) {
	var row PaymentTotalsRow
	err := r.db.Model(&models.Payment{}).
		Select("COALESCE(SUM(premium), 0) AS premiums, "+
			"COALESCE(SUM(CASE WHEN payable > 0 THEN admin_deduction ELSE 0 END), 0) AS admin_deductions, "+
			"COALESCE(SUM(CASE WHEN payable > 0 THEN operational_costs ELSE 0 END), 0) AS operational_costs, "+
			"COALESCE(SUM(payable), 0) AS payable").
		Where("month_id = ? AND state <> ?", monthID, constants.PaymentStateVoided).
		Scan(&row).Error
	if err != nil {
		return PaymentTotalsRow{}, err
	}
	return row, nil
}
