package repository

import (
	"errors"
	"time"

	"github.com/teamledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MonthRepository 账期数据访问接口
type MonthRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MonthRepository

	GetByID(id uint) (*models.Month, error)
	GetByIDForUpdate(id uint) (*models.Month, error)
	GetByStart(siteID uint, startsAt time.Time) (*models.Month, error)
	GetOpen(siteID uint) (*models.Month, error)
	GetLastClosed(siteID uint) (*models.Month, error)
	GetContaining(siteID uint, at time.Time) (*models.Month, error)
	List(filter MonthListFilter) ([]models.Month, int64, error)
	Create(month *models.Month) error
	Update(month *models.Month) error
}

// GormMonthRepository GORM 实现
type GormMonthRepository struct {
	db *gorm.DB
}

// NewMonthRepository 创建账期仓库
func NewMonthRepository(db *gorm.DB) *GormMonthRepository {
	return &GormMonthRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMonthRepository) WithTx(tx *gorm.DB) MonthRepository {
	if tx == nil {
		return r
	}
	return &GormMonthRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMonthRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

func firstMonth(query *gorm.DB) (*models.Month, error) {
	var month models.Month
	if err := query.First(&month).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &month, nil
}

// GetByID 根据 ID 获取账期
func (r *GormMonthRepository) GetByID(id uint) (*models.Month, error) {
	if id == 0 {
		return nil, nil
	}
	return firstMonth(r.db.Where("id = ?", id))
}

// GetByIDForUpdate 加锁获取账期
func (r *GormMonthRepository) GetByIDForUpdate(id uint) (*models.Month, error) {
	if id == 0 {
		return nil, nil
	}
	return firstMonth(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// GetByStart 根据开始日期获取账期
func (r *GormMonthRepository) GetByStart(siteID uint, startsAt time.Time) (*models.Month, error) {
	return firstMonth(r.db.Where("site_id = ? AND starts_at = ?", siteID, startsAt))
}

// GetOpen 获取站点当前未关账的账期（最早的一个）
func (r *GormMonthRepository) GetOpen(siteID uint) (*models.Month, error) {
	return firstMonth(r.db.Where("site_id = ? AND closed_at IS NULL", siteID).Order("starts_at ASC"))
}

// GetLastClosed 获取站点最近关账的账期
func (r *GormMonthRepository) GetLastClosed(siteID uint) (*models.Month, error) {
	return firstMonth(r.db.Where("site_id = ? AND closed_at IS NOT NULL", siteID).Order("starts_at DESC"))
}

// GetContaining 获取包含指定日期的账期
func (r *GormMonthRepository) GetContaining(siteID uint, at time.Time) (*models.Month, error) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	return firstMonth(r.db.Where("site_id = ? AND starts_at <= ? AND ends_at >= ?", siteID, day, day).Order("starts_at DESC"))
}

// List 账期列表
func (r *GormMonthRepository) List(filter MonthListFilter) ([]models.Month, int64, error) {
	query := r.db.Model(&models.Month{})
	if filter.SiteID != 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.OnlyClosed {
		query = query.Where("closed_at IS NOT NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var months []models.Month
	if err := query.Order("starts_at DESC").Find(&months).Error; err != nil {
		return nil, 0, err
	}
	return months, total, nil
}

// Create 创建账期
func (r *GormMonthRepository) Create(month *models.Month) error {
	return r.db.Create(month).Error
}

// Update 更新账期
func (r *GormMonthRepository) Update(month *models.Month) error {
	return r.db.Save(month).Error
}
