package models

import "time"

// Tier 佣金等级（阶梯），达到激活数量阈值后解锁
type Tier struct {
	ID        uint       `gorm:"primarykey" json:"id"`                               // 主键
	SiteID    uint       `gorm:"not null;index" json:"site_id"`                      // 站点ID
	Name      string     `gorm:"type:varchar(80);not null" json:"name"`              // 名称
	Threshold int64      `gorm:"not null;default:0;index" json:"threshold"`          // 激活阈值
	Rates     RateVector `gorm:"type:varchar(255);not null;default:''" json:"rates"` // 各层级佣金比例（%）
	IsTop     bool       `gorm:"-" json:"is_top"`                                    // 是否为最高等级（按阈值推导）
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt time.Time  `gorm:"index" json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (Tier) TableName() string {
	return "tiers"
}
