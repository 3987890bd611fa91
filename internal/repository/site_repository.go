package repository

import (
	"errors"

	"github.com/teamledger/internal/models"

	"gorm.io/gorm"
)

// SiteRepository 站点数据访问接口
type SiteRepository interface {
	GetByID(id uint) (*models.Site, error)
	List() ([]models.Site, error)
	Create(site *models.Site) error
	Update(site *models.Site) error
}

// GormSiteRepository GORM 实现
type GormSiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository 创建站点仓库
func NewSiteRepository(db *gorm.DB) *GormSiteRepository {
	return &GormSiteRepository{db: db}
}

// GetByID 根据 ID 获取站点
func (r *GormSiteRepository) GetByID(id uint) (*models.Site, error) {
	if id == 0 {
		return nil, nil
	}
	var site models.Site
	if err := r.db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

// List 获取全部站点
func (r *GormSiteRepository) List() ([]models.Site, error) {
	var sites []models.Site
	if err := r.db.Order("id ASC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// Create 创建站点
func (r *GormSiteRepository) Create(site *models.Site) error {
	return r.db.Create(site).Error
}

// Update 更新站点
func (r *GormSiteRepository) Update(site *models.Site) error {
	return r.db.Save(site).Error
}
