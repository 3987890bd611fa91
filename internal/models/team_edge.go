package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TeamEdge 推荐树边：根成员按层级对某张卡片的移动获得佣金
type TeamEdge struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	UserID             uint            `gorm:"not null;index;uniqueIndex:idx_team_edge_root_card" json:"user_id"`
	CardID             uint            `gorm:"not null;index;uniqueIndex:idx_team_edge_root_card" json:"card_id"`
	Level              int             `gorm:"not null;index" json:"level"`
	CommissionRate     decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0" json:"commission_rate"`
	CommissionDisabled bool            `gorm:"not null;default:false;index" json:"commission_disabled"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TableName 指定表名
func (TeamEdge) TableName() string {
	return "team_edges"
}
