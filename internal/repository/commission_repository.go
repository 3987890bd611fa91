package repository

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionRepository 佣金聚合查询接口
// 说明：只读，基于推荐树边与卡片流水的连接计算。
type CommissionRepository interface {
	WithTx(tx *gorm.DB) CommissionRepository
	Sum(filter CommissionFilter) (CommissionSumRow, error)
	SumByLevel(filter CommissionFilter) ([]CommissionLevelRow, error)
	SumByUser(filter CommissionFilter) ([]CommissionUserRow, error)
	SumByUserLevel(filter CommissionFilter) ([]CommissionUserLevelRow, error)
}

// CommissionSumRow 佣金合计
type CommissionSumRow struct {
	Amount decimal.Decimal
	Count  int64
}

// CommissionLevelRow 按层级的佣金合计
type CommissionLevelRow struct {
	Level  int
	Amount decimal.Decimal
	Count  int64
}

// CommissionUserRow 按成员的佣金合计
type CommissionUserRow struct {
	UserID uint
	Amount decimal.Decimal
	Count  int64
}

// CommissionUserLevelRow 按成员与层级的佣金合计
type CommissionUserLevelRow struct {
	UserID uint
	Level  int
	Rate   decimal.Decimal // 该层级边上实际使用的佣金比例（多条边取最大值）
	Amount decimal.Decimal
	Count  int64
}

const commissionSelect = "COALESCE(SUM(team_edges.commission_rate * card_movements.value_net), 0) AS amount, COUNT(*) AS count"

// GormCommissionRepository GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金聚合仓库
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

func (r *GormCommissionRepository) base(filter CommissionFilter) *gorm.DB {
	query := r.db.Table("team_edges").
		Joins("JOIN card_movements ON card_movements.card_id = team_edges.card_id").
		Where("card_movements.card_expired = ?", false)
	if filter.SiteID != 0 {
		query = query.Where("card_movements.site_id = ?", filter.SiteID)
	}
	if len(filter.MonthIDs) > 0 {
		query = query.Where("card_movements.month_id IN ?", filter.MonthIDs)
	}
	if len(filter.UserIDs) > 0 {
		query = query.Where("team_edges.user_id IN ?", filter.UserIDs)
	}
	if !filter.IncludeDisabled {
		query = query.Where("team_edges.commission_disabled = ?", false)
	}
	return query
}

// Sum 佣金合计
func (r *GormCommissionRepository) Sum(filter CommissionFilter) (CommissionSumRow, error) {
	var row CommissionSumRow
	if err := r.base(filter).Select(commissionSelect).Scan(&row).Error; err != nil {
		return CommissionSumRow{}, err
	}
	return row, nil
}

// SumByLevel 按层级汇总
func (r *GormCommissionRepository) SumByLevel(filter CommissionFilter) ([]CommissionLevelRow, error) {
	var rows []CommissionLevelRow
	err := r.base(filter).
		Select("team_edges.level AS level, " + commissionSelect).
		Group("team_edges.level").
		Order("team_edges.level ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByUser 按成员汇总
func (r *GormCommissionRepository) SumByUser(filter CommissionFilter) ([]CommissionUserRow, error) {
	var rows []CommissionUserRow
	err := r.base(filter).
		Select("team_edges.user_id AS user_id, " + commissionSelect).
		Group("team_edges.user_id").
		Order("team_edges.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumByUserLevel 按成员与层级汇总
func (r *GormCommissionRepository) SumByUserLevel(filter CommissionFilter) ([]CommissionUserLevelRow, error) {
	var rows []CommissionUserLevelRow
	err := r.base(filter).
		Select("team_edges.user_id AS user_id, team_edges.level AS level, MAX(team_edges.commission_rate) AS rate, " + commissionSelect).
		Group("team_edges.user_id").
		Group("team_edges.level").
		Order("team_edges.user_id ASC").
		Order("team_edges.level ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
