package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment 成员月度结算单
type Payment struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	SiteID             uint            `gorm:"not null;index" json:"site_id"`
	UserID             uint            `gorm:"not null;index" json:"user_id"`
	MonthID            uint            `gorm:"not null;index" json:"month_id"`
	TierID             uint            `gorm:"not null;default:0" json:"tier_id"`
	NIF                string          `gorm:"type:varchar(32);default:''" json:"nif"`
	Levels             LevelBreakdown  `gorm:"type:text" json:"levels"`
	Commission         Money           `gorm:"type:decimal(20,2);not null;default:0" json:"commission"`
	Premium            Money           `gorm:"type:decimal(20,2);not null;default:0" json:"premium"`
	AdminDeduction     Money           `gorm:"type:decimal(20,2);not null;default:0" json:"admin_deduction"`
	OperationalCosts   Money           `gorm:"type:decimal(20,2);not null;default:0" json:"operational_costs"`
	Income             Money           `gorm:"type:decimal(20,2);not null;default:0" json:"income"`
	TaxPercent         decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"tax_percent"`
	WithholdingPercent decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"withholding_percent"`
	TaxAmount          Money           `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`
	WithholdingAmount  Money           `gorm:"type:decimal(20,2);not null;default:0" json:"withholding_amount"`
	Payable            Money           `gorm:"type:decimal(20,2);not null;default:0" json:"payable"`
	State              string          `gorm:"type:varchar(32);not null;index" json:"state"`
	IsCorrection       bool            `gorm:"not null;default:false" json:"is_correction"`
	CorrectsID         *uint           `gorm:"index" json:"corrects_id,omitempty"`
	Note               string          `gorm:"type:text" json:"note"`
	ClosedAt           *time.Time      `gorm:"index" json:"closed_at,omitempty"`
	PaidAt             *time.Time      `gorm:"index" json:"paid_at,omitempty"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"index" json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Month *Month `gorm:"foreignKey:MonthID" json:"month,omitempty"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
