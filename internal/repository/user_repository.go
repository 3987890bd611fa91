package repository

import (
	"errors"
	"time"

	"github.com/teamledger/internal/models"

	"gorm.io/gorm"
)

// UserRepository 成员数据访问接口
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	GetByID(id uint) (*models.User, error)
	ListByIDs(ids []uint) ([]models.User, error)
	ListBySite(siteID uint, onlyActive bool) ([]models.User, error)
	List(filter UserListFilter) ([]models.User, int64, error)
	Create(user *models.User) error
	Update(user *models.User) error
	UpdateTier(id uint, tierID uint, updatedAt time.Time) error
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建成员仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// GetByID 根据 ID 获取成员（含等级）
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.Preload("Tier").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListByIDs 批量获取成员（含等级）
func (r *GormUserRepository) ListByIDs(ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.Preload("Tier").Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListBySite 获取站点全部成员
func (r *GormUserRepository) ListBySite(siteID uint, onlyActive bool) ([]models.User, error) {
	query := r.db.Preload("Tier").Where("site_id = ?", siteID)
	if onlyActive {
		query = query.Where("deactivated_at IS NULL")
	}
	var users []models.User
	if err := query.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// List 成员列表
func (r *GormUserRepository) List(filter UserListFilter) ([]models.User, int64, error) {
	query := r.db.Model(&models.User{})
	if filter.SiteID != 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.TierID != 0 {
		query = query.Where("tier_id = ?", filter.TierID)
	}
	if filter.OnlyActive {
		query = query.Where("deactivated_at IS NULL")
	}
	query = applyKeyword(query, filter.Keyword, "name", "email", "member_number", "nif")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var users []models.User
	if err := query.Preload("Tier").Order("id DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Create 创建成员
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Update 更新成员
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Omit("Tier").Save(user).Error
}

// UpdateTier 更新成员等级
func (r *GormUserRepository) UpdateTier(id uint, tierID uint, updatedAt time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"tier_id":    tierID,
		"updated_at": updatedAt,
	}).Error
}
