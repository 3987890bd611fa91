package repository

import (
	"errors"

	"github.com/teamledger/internal/models"

	"gorm.io/gorm"
)

// TierRepository 等级数据访问接口
type TierRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) TierRepository

	GetByID(id uint) (*models.Tier, error)
	ListBySite(siteID uint) ([]models.Tier, error)
	Create(tier *models.Tier) error
	Update(tier *models.Tier) error
}

// GormTierRepository GORM 实现
type GormTierRepository struct {
	db *gorm.DB
}

// NewTierRepository 创建等级仓库
func NewTierRepository(db *gorm.DB) *GormTierRepository {
	return &GormTierRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTierRepository) WithTx(tx *gorm.DB) TierRepository {
	if tx == nil {
		return r
	}
	return &GormTierRepository{db: tx}
}

// Transaction 执行事务
func (r *GormTierRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据 ID 获取等级
func (r *GormTierRepository) GetByID(id uint) (*models.Tier, error) {
	if id == 0 {
		return nil, nil
	}
	var tier models.Tier
	if err := r.db.First(&tier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

// ListBySite 按阈值升序获取站点等级
func (r *GormTierRepository) ListBySite(siteID uint) ([]models.Tier, error) {
	var tiers []models.Tier
	if err := r.db.Where("site_id = ?", siteID).
		Order("threshold ASC").
		Order("id ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// Create 创建等级
func (r *GormTierRepository) Create(tier *models.Tier) error {
	return r.db.Create(tier).Error
}

// Update 更新等级
func (r *GormTierRepository) Update(tier *models.Tier) error {
	return r.db.Save(tier).Error
}
