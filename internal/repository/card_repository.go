package repository

import (
	"errors"

	"github.com/teamledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository 卡片数据访问接口
type CardRepository interface {
	WithTx(tx *gorm.DB) CardRepository
	GetByID(id uint) (*models.Card, error)
	GetByPhone(siteID uint, phone string) (*models.Card, error)
	GetBySIM(siteID uint, sim string) (*models.Card, error)
	GetOwnedBy(userID uint) (*models.Card, error)
	ListByOrder(orderID uint) ([]models.Card, error)
	List(filter CardListFilter) ([]models.Card, int64, error)
	Create(card *models.Card) error
	CreateBatch(cards []models.Card) error
	Update(card *models.Card) error
	CountActivatedByOrder(orderID uint) (int64, error)
	DeleteByOrder(orderID uint) (int64, error)

	GetOrderByID(id uint) (*models.CardOrder, error)
	GetOrderByIDForUpdate(id uint) (*models.CardOrder, error)
	CreateOrder(order *models.CardOrder) error
	UpdateOrder(order *models.CardOrder) error
}

// GormCardRepository GORM 实现
type GormCardRepository struct {
	db *gorm.DB
}

// NewCardRepository 创建卡片仓库
func NewCardRepository(db *gorm.DB) *GormCardRepository {
	return &GormCardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCardRepository) WithTx(tx *gorm.DB) CardRepository {
	if tx == nil {
		return r
	}
	return &GormCardRepository{db: tx}
}

// GetByID 根据 ID 获取卡片
func (r *GormCardRepository) GetByID(id uint) (*models.Card, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.Card
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByPhone 根据手机号获取站点卡片
func (r *GormCardRepository) GetByPhone(siteID uint, phone string) (*models.Card, error) {
	if phone == "" {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Where("site_id = ? AND phone = ?", siteID, phone).Order("id ASC").First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetBySIM 根据 SIM 编号获取站点卡片
func (r *GormCardRepository) GetBySIM(siteID uint, sim string) (*models.Card, error) {
	if sim == "" {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Where("site_id = ? AND sim = ?", siteID, sim).Order("id ASC").First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetOwnedBy 获取成员绑定的卡片
func (r *GormCardRepository) GetOwnedBy(userID uint) (*models.Card, error) {
	if userID == 0 {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Where("owner_id = ?", userID).Order("id ASC").First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ListByOrder 获取订单发出的卡片
func (r *GormCardRepository) ListByOrder(orderID uint) ([]models.Card, error) {
	var cards []models.Card
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// List 卡片列表
func (r *GormCardRepository) List(filter CardListFilter) ([]models.Card, int64, error) {
	query := r.db.Model(&models.Card{})
	if filter.SiteID != 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.SellerID != 0 {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.OnlyActivated {
		query = query.Where("activated_at IS NOT NULL")
	}
	query = applyKeyword(query, filter.Keyword, "sim", "phone")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var cards []models.Card
	if err := query.Order("id DESC").Find(&cards).Error; err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

// Create 创建卡片
func (r *GormCardRepository) Create(card *models.Card) error {
	return r.db.Create(card).Error
}

// CreateBatch 批量创建卡片
func (r *GormCardRepository) CreateBatch(cards []models.Card) error {
	if len(cards) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&cards, 200).Error
}

// Update 更新卡片
func (r *GormCardRepository) Update(card *models.Card) error {
	return r.db.Save(card).Error
}

// CountActivatedByOrder 统计订单中已激活的卡片数
func (r *GormCardRepository) CountActivatedByOrder(orderID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Card{}).
		Where("order_id = ? AND activated_at IS NOT NULL", orderID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByOrder 删除订单发出的卡片
func (r *GormCardRepository) DeleteByOrder(orderID uint) (int64, error) {
	result := r.db.Where("order_id = ?", orderID).Delete(&models.Card{})
	return result.RowsAffected, result.Error
}

// GetOrderByID 获取卡片订单
func (r *GormCardRepository) GetOrderByID(id uint) (*models.CardOrder, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.CardOrder
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByIDForUpdate 加锁获取卡片订单
func (r *GormCardRepository) GetOrderByIDForUpdate(id uint) (*models.CardOrder, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.CardOrder
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// CreateOrder 创建卡片订单
func (r *GormCardRepository) CreateOrder(order *models.CardOrder) error {
	return r.db.Create(order).Error
}

// UpdateOrder 更新卡片订单
func (r *GormCardRepository) UpdateOrder(order *models.CardOrder) error {
	return r.db.Save(order).Error
}
