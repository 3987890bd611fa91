package repository

import (
	"errors"
	"time"

	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementRepository 卡片流水数据访问接口
type MovementRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MovementRepository

	CreateImport(item *models.MovementImport) error
	UpdateImport(item *models.MovementImport) error
	GetImportByID(id uint) (*models.MovementImport, error)
	ListImports(siteID, monthID uint) ([]models.MovementImport, error)

	CreateBatch(movements []models.CardMovement) error
	ExistingDedupKeys(siteID uint, keys []string) (map[string]struct{}, error)
	ListByCard(cardID uint, monthID uint) ([]models.CardMovement, error)
	CountByMonth(monthID uint) (int64, error)
	SumNetForActivatedSince(siteID, monthID uint, since time.Time) (decimal.Decimal, error)
}

// GormMovementRepository GORM 实现
type GormMovementRepository struct {
	db *gorm.DB
}

// NewMovementRepository 创建卡片流水仓库
func NewMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMovementRepository) WithTx(tx *gorm.DB) MovementRepository {
	if tx == nil {
		return r
	}
	return &GormMovementRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMovementRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateImport 创建导入批次
func (r *GormMovementRepository) CreateImport(item *models.MovementImport) error {
	return r.db.Create(item).Error
}

// UpdateImport 更新导入批次
func (r *GormMovementRepository) UpdateImport(item *models.MovementImport) error {
	return r.db.Save(item).Error
}

// GetImportByID 获取导入批次
func (r *GormMovementRepository) GetImportByID(id uint) (*models.MovementImport, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.MovementImport
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListImports 获取账期的导入批次
func (r *GormMovementRepository) ListImports(siteID, monthID uint) ([]models.MovementImport, error) {
	query := r.db.Where("site_id = ?", siteID)
	if monthID != 0 {
		query = query.Where("month_id = ?", monthID)
	}
	var items []models.MovementImport
	if err := query.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CreateBatch 批量写入流水
func (r *GormMovementRepository) CreateBatch(movements []models.CardMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&movements, 500).Error
}

// ExistingDedupKeys 返回已存在的去重键
func (r *GormMovementRepository) ExistingDedupKeys(siteID uint, keys []string) (map[string]struct{}, error) {
	result := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	const chunk = 500
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		var found []string
		if err := r.db.Model(&models.CardMovement{}).
			Where("site_id = ? AND dedup_key IN ?", siteID, keys[start:end]).
			Pluck("dedup_key", &found).Error; err != nil {
			return nil, err
		}
		for _, key := range found {
			result[key] = struct{}{}
		}
	}
	return result, nil
}

// ListByCard 获取卡片在账期内的流水
func (r *GormMovementRepository) ListByCard(cardID uint, monthID uint) ([]models.CardMovement, error) {
	query := r.db.Where("card_id = ?", cardID)
	if monthID != 0 {
		query = query.Where("month_id = ?", monthID)
	}
	var movements []models.CardMovement
	if err := query.Order("moved_at ASC").Order("id ASC").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// CountByMonth 统计账期流水数
func (r *GormMovementRepository) CountByMonth(monthID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CardMovement{}).Where("month_id = ?", monthID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumNetForActivatedSince 汇总账期内激活日期不早于 since 的卡片净充值额
func (r *GormMovementRepository) SumNetForActivatedSince(siteID, monthID uint, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Amount decimal.Decimal
	}
	err := r.db.Table("card_movements").
		Select("COALESCE(SUM(card_movements.value_net), 0) AS amount").
		Joins("JOIN cards ON cards.id = card_movements.card_id").
		Where("card_movements.site_id = ? AND card_movements.month_id = ?", siteID, monthID).
		Where("cards.activated_at IS NOT NULL AND cards.activated_at >= ?", since).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Amount, nil
}
