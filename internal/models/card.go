package models

import "time"

// Card 预付卡
type Card struct {
	ID          uint       `gorm:"primarykey" json:"id"`                       // 主键
	SiteID      uint       `gorm:"not null;index" json:"site_id"`              // 站点ID
	SIM         string     `gorm:"type:varchar(64);not null;index" json:"sim"` // SIM 编号
	Phone       string     `gorm:"type:varchar(32);index" json:"phone"`        // 手机号
	OwnerID     *uint      `gorm:"index" json:"owner_id,omitempty"`            // 持卡成员（卡片绑定的用户）
	SellerID    *uint      `gorm:"index" json:"seller_id,omitempty"`           // 推荐卖家
	OrderID     *uint      `gorm:"index" json:"order_id,omitempty"`            // 来源订单
	ActivatedAt *time.Time `gorm:"index" json:"activated_at,omitempty"`        // 激活时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                    // 更新时间
}

// TableName 指定表名
func (Card) TableName() string {
	return "cards"
}

// ExpiredAt 判断卡片在指定时间是否已超出佣金窗口（激活后 windowMonths 个月）
func (c *Card) ExpiredAt(at time.Time, windowMonths int) bool {
	if c == nil || c.ActivatedAt == nil || windowMonths <= 0 {
		return false
	}
	return c.ActivatedAt.AddDate(0, windowMonths, 0).Before(at)
}

// CardOrder 卡片申领订单
type CardOrder struct {
	ID          uint       `gorm:"primarykey" json:"id"`                // 主键
	SiteID      uint       `gorm:"not null;index" json:"site_id"`       // 站点ID
	SellerID    uint       `gorm:"not null;index" json:"seller_id"`     // 申领卖家
	Quantity    int        `gorm:"not null;default:0" json:"quantity"`  // 申领数量
	Comment     string     `gorm:"type:text" json:"comment"`            // 备注
	ExpeditedAt *time.Time `gorm:"index" json:"expedited_at,omitempty"` // 发货时间
	RejectedAt  *time.Time `gorm:"index" json:"rejected_at,omitempty"`  // 拒绝时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`             // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`             // 更新时间
}

// TableName 指定表名
func (CardOrder) TableName() string {
	return "card_orders"
}
