package repository

import (
	"github.com/teamledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TeamEdgeRepository 推荐树边数据访问接口
type TeamEdgeRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) TeamEdgeRepository

	CreateBatch(edges []models.TeamEdge) error
	ListByRoot(rootID uint) ([]models.TeamEdge, error)
	ListByCard(cardID uint) ([]models.TeamEdge, error)
	DeleteByRoot(rootID uint) (int64, error)
	DeleteByCards(cardIDs []uint) (int64, error)
	ListFrontierCards(siteID, rootID uint, sellerIDs []uint) ([]FrontierCardRow, error)
	CountActivatedByLevel(rootID uint) ([]LevelCountRow, error)
	UpdateRateByLevel(rootID uint, level int, rate decimal.Decimal) error
	ZeroRatesBeyond(rootID uint, level int) error
	UpdateTierRateByLevel(tierID uint, level int, rate decimal.Decimal) error
	ZeroTierRatesBeyond(tierID uint, level int) error
	DisableDeeperInOtherTrees(userID uint) (int64, error)
}

// FrontierCardRow 广度遍历时某一层待加入树的卡片
type FrontierCardRow struct {
	CardID      uint
	SellerID    uint
	OwnerID     *uint
	OwnerTierID *uint
}

// LevelCountRow 按层级计数
type LevelCountRow struct {
	Level int   `json:"level"`
	Count int64 `json:"count"`
}

// GormTeamEdgeRepository GORM 实现
type GormTeamEdgeRepository struct {
	db *gorm.DB
}

// NewTeamEdgeRepository 创建推荐树边仓库
func NewTeamEdgeRepository(db *gorm.DB) *GormTeamEdgeRepository {
	return &GormTeamEdgeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTeamEdgeRepository) WithTx(tx *gorm.DB) TeamEdgeRepository {
	if tx == nil {
		return r
	}
	return &GormTeamEdgeRepository{db: tx}
}

// Transaction 执行事务
func (r *GormTeamEdgeRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateBatch 批量写入边
func (r *GormTeamEdgeRepository) CreateBatch(edges []models.TeamEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&edges, 500).Error
}

// ListByRoot 获取根成员的全部边
func (r *GormTeamEdgeRepository) ListByRoot(rootID uint) ([]models.TeamEdge, error) {
	var edges []models.TeamEdge
	if err := r.db.Where("user_id = ?", rootID).
		Order("level ASC").
		Order("card_id ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

// ListByCard 获取引用某张卡片的全部边
func (r *GormTeamEdgeRepository) ListByCard(cardID uint) ([]models.TeamEdge, error) {
	var edges []models.TeamEdge
	if err := r.db.Where("card_id = ?", cardID).
		Order("level ASC").
		Order("user_id ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

// DeleteByRoot 删除根成员的全部边
func (r *GormTeamEdgeRepository) DeleteByRoot(rootID uint) (int64, error) {
	result := r.db.Where("user_id = ?", rootID).Delete(&models.TeamEdge{})
	return result.RowsAffected, result.Error
}

// DeleteByCards 删除引用指定卡片的全部边
func (r *GormTeamEdgeRepository) DeleteByCards(cardIDs []uint) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	result := r.db.Where("card_id IN ?", cardIDs).Delete(&models.TeamEdge{})
	return result.RowsAffected, result.Error
}

// ListFrontierCards 获取卖家集合售出、且尚未进入根成员树的卡片
func (r *GormTeamEdgeRepository) ListFrontierCards(siteID, rootID uint, sellerIDs []uint) ([]FrontierCardRow, error) {
	if len(sellerIDs) == 0 {
		return []FrontierCardRow{}, nil
	}
	var rows []FrontierCardRow
	err := r.db.Table("cards").
		Select("cards.id AS card_id, cards.seller_id AS seller_id, cards.owner_id AS owner_id, users.tier_id AS owner_tier_id").
		Joins("LEFT JOIN users ON users.id = cards.owner_id").
		Where("cards.site_id = ?", siteID).
		Where("cards.seller_id IN ?", sellerIDs).
		Where("NOT EXISTS (SELECT 1 FROM team_edges WHERE team_edges.user_id = ? AND team_edges.card_id = cards.id)", rootID).
		Order("cards.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountActivatedByLevel 按层级统计根成员树中已激活的卡片
func (r *GormTeamEdgeRepository) CountActivatedByLevel(rootID uint) ([]LevelCountRow, error) {
	var rows []LevelCountRow
	err := r.db.Table("team_edges").
		Select("team_edges.level AS level, COUNT(*) AS count").
		Joins("JOIN cards ON cards.id = team_edges.card_id").
		Where("team_edges.user_id = ?", rootID).
		Where("cards.activated_at IS NOT NULL").
		Group("team_edges.level").
		Order("team_edges.level ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateRateByLevel 更新根成员某一层的佣金比例
func (r *GormTeamEdgeRepository) UpdateRateByLevel(rootID uint, level int, rate decimal.Decimal) error {
	return r.db.Model(&models.TeamEdge{}).
		Where("user_id = ? AND level = ?", rootID, level).
		Update("commission_rate", rate).Error
}

// ZeroRatesBeyond 将超过指定层级的佣金比例置零
func (r *GormTeamEdgeRepository) ZeroRatesBeyond(rootID uint, level int) error {
	return r.db.Model(&models.TeamEdge{}).
		Where("user_id = ? AND level > ?", rootID, level).
		Update("commission_rate", decimal.Zero).Error
}

// tierDefaultRoots 使用等级默认比例（未设置自定义比例）的根成员
const tierDefaultRoots = "user_id IN (SELECT id FROM users WHERE tier_id = ? AND custom_rates IS NULL)"

// UpdateTierRateByLevel 批量更新某等级下所有使用默认比例的根成员在指定层级的佣金比例
func (r *GormTeamEdgeRepository) UpdateTierRateByLevel(tierID uint, level int, rate decimal.Decimal) error {
	return r.db.Model(&models.TeamEdge{}).
		Where(tierDefaultRoots, tierID).
		Where("level = ?", level).
		Update("commission_rate", rate).Error
}

// ZeroTierRatesBeyond 批量将某等级默认比例根成员超过指定层级的佣金比例置零
func (r *GormTeamEdgeRepository) ZeroTierRatesBeyond(tierID uint, level int) error {
	return r.db.Model(&models.TeamEdge{}).
		Where(tierDefaultRoots, tierID).
		Where("level > ?", level).
		Update("commission_rate", decimal.Zero).Error
}

// DisableDeeperInOtherTrees 其他根成员经由该成员团队、且层级更深的边停止计佣
func (r *GormTeamEdgeRepository) DisableDeeperInOtherTrees(userID uint) (int64, error) {
	result := r.db.Model(&models.TeamEdge{}).
		Where("user_id <> ?", userID).
		Where("commission_disabled = ?", false).
		Where("EXISTS (SELECT 1 FROM team_edges own WHERE own.user_id = ? AND own.card_id = team_edges.card_id AND own.level < team_edges.level)", userID).
		Update("commission_disabled", true)
	return result.RowsAffected, result.Error
}
