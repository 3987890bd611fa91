package service

import (
	"github.com/teamledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// commissionPrecision 聚合金额保留的小数位，消除数据库浮点误差
const commissionPrecision = 6

// CommissionService 佣金聚合服务（只读）
type CommissionService struct {
	repo repository.CommissionRepository
}

// NewCommissionService 创建佣金聚合服务
func NewCommissionService(repo repository.CommissionRepository) *CommissionService {
	return &CommissionService{repo: repo}
}

// CommissionTotal 佣金合计
type CommissionTotal struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int64           `json:"count"`
}

// LevelCommission 按层级的佣金
type LevelCommission struct {
	Level  int             `json:"level"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	Count  int64           `json:"count"`
}

// UserCommission 按成员的佣金
type UserCommission struct {
	UserID uint            `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Count  int64           `json:"count"`
}

// UserLevelCommission 成员的分层佣金
type UserLevelCommission struct {
	UserID uint              `json:"user_id"`
	Amount decimal.Decimal   `json:"amount"`
	Count  int64             `json:"count"`
	Levels []LevelCommission `json:"levels"`
}

func (s *CommissionService) repoFor(tx *gorm.DB) repository.CommissionRepository {
	return s.repo.WithTx(tx)
}

// Sum 佣金合计
func (s *CommissionService) Sum(tx *gorm.DB, filter repository.CommissionFilter) (CommissionTotal, error) {
	row, err := s.repoFor(tx).Sum(filter)
	if err != nil {
		return CommissionTotal{}, err
	}
	return CommissionTotal{Amount: row.Amount.Round(commissionPrecision), Count: row.Count}, nil
}

// ByLevel 按层级汇总
func (s *CommissionService) ByLevel(tx *gorm.DB, filter repository.CommissionFilter) ([]LevelCommission, error) {
	rows, err := s.repoFor(tx).SumByLevel(filter)
	if err != nil {
		return nil, err
	}
	result := make([]LevelCommission, 0, len(rows))
	for _, row := range rows {
		result = append(result, LevelCommission{
			Level:  row.Level,
			Amount: row.Amount.Round(commissionPrecision),
			Count:  row.Count,
		})
	}
	return result, nil
}

// ByUser 按成员汇总
func (s *CommissionService) ByUser(tx *gorm.DB, filter repository.CommissionFilter) ([]UserCommission, error) {
	rows, err := s.repoFor(tx).SumByUser(filter)
	if err != nil {
		return nil, err
	}
	result := make([]UserCommission, 0, len(rows))
	for _, row := range rows {
		result = append(result, UserCommission{
			UserID: row.UserID,
			Amount: row.Amount.Round(commissionPrecision),
			Count:  row.Count,
		})
	}
	return result, nil
}

// ByUserLevel 按成员与层级汇总，结果按成员 ID 升序
func (s *CommissionService) ByUserLevel(tx *gorm.DB, filter repository.CommissionFilter) ([]UserLevelCommission, error) {
	rows, err := s.repoFor(tx).SumByUserLevel(filter)
	if err != nil {
		return nil, err
	}
	result := make([]UserLevelCommission, 0)
	index := make(map[uint]int)
	for _, row := range rows {
		pos, ok := index[row.UserID]
		if !ok {
			pos = len(result)
			index[row.UserID] = pos
			result = append(result, UserLevelCommission{UserID: row.UserID, Amount: decimal.Zero})
		}
		amount := row.Amount.Round(commissionPrecision)
		item := &result[pos]
		item.Levels = append(item.Levels, LevelCommission{Level: row.Level, Rate: row.Rate, Amount: amount, Count: row.Count})
		item.Amount = item.Amount.Add(amount)
		item.Count += row.Count
	}
	return result, nil
}

// CountEdges 按成员统计计入的充值笔数
func (s *CommissionService) CountEdges(tx *gorm.DB, filter repository.CommissionFilter) (map[uint]int64, error) {
	rows, err := s.repoFor(tx).SumByUser(filter)
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}
