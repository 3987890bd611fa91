package models

import (
	"time"
)

// User 推广成员（卖家）
type User struct {
	ID                    uint        `gorm:"primarykey" json:"id"`                                        // 主键
	SiteID                uint        `gorm:"not null;index" json:"site_id"`                               // 站点ID
	Name                  string      `gorm:"type:varchar(120);default:''" json:"name"`                    // 姓名
	Email                 string      `gorm:"type:varchar(180);index" json:"email"`                        // 邮箱
	MemberNumber          string      `gorm:"type:varchar(32);index" json:"member_number"`                 // 成员编号
	NIF                   string      `gorm:"type:varchar(32);default:''" json:"nif"`                      // 税号
	TierID                uint        `gorm:"not null;index" json:"tier_id"`                               // 当前等级
	CustomRates           *RateVector `gorm:"type:varchar(255)" json:"custom_rates,omitempty"`             // 自定义佣金比例，优先于等级默认值
	MonthlyPremium        *Money      `gorm:"type:decimal(20,2)" json:"monthly_premium,omitempty"`         // 每月奖金
	MonthlyAdminDeduction *Money      `gorm:"type:decimal(20,2)" json:"monthly_admin_deduction,omitempty"` // 每月行政扣款（覆盖站点默认值）
	ActivatedAt           *time.Time  `json:"activated_at,omitempty"`                                      // 启用时间
	DeactivatedAt         *time.Time  `gorm:"index" json:"deactivated_at,omitempty"`                       // 停用时间
	CreatedAt             time.Time   `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt             time.Time   `gorm:"index" json:"updated_at"`                                     // 更新时间

	Tier *Tier `gorm:"foreignKey:TierID" json:"tier,omitempty"` // 等级
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Deactivated 是否已停用
func (u *User) Deactivated() bool {
	return u != nil && u.DeactivatedAt != nil
}

// EffectiveRates 有效佣金比例：自定义优先，否则取等级默认
func (u *User) EffectiveRates() RateVector {
	if u == nil {
		return RateVector{}
	}
	if u.CustomRates != nil {
		return *u.CustomRates
	}
	if u.Tier != nil {
		return u.Tier.Rates
	}
	return RateVector{}
}
