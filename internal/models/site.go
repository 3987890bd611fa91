package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Site 租户（站点）配置
type Site struct {
	ID                        uint            `gorm:"primarykey" json:"id"`                                             // 主键
	Name                      string          `gorm:"type:varchar(120);not null" json:"name"`                           // 名称
	ReportVATPercent          decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"report_vat_percent"`  // 导入报表的增值税率（%）
	AdminDeductionDefault     Money           `gorm:"type:decimal(20,2);not null;default:0" json:"admin_deduction"`     // 默认行政扣款
	CommissionWindowMonths    int             `gorm:"not null;default:12" json:"commission_window_months"`              // 佣金计算窗口（激活后月数）
	TaxPercentDefault         decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"tax_percent"`         // 默认税率（%）
	WithholdingPercentDefault decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"withholding_percent"` // 默认预扣率（%）
	HouseCardPhone            string          `gorm:"type:varchar(32)" json:"house_card_phone"`                         // 无归属卡片默认挂靠的卡号
	CreatedAt                 time.Time       `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt                 time.Time       `gorm:"index" json:"updated_at"`                                          // 更新时间
}

// TableName 指定表名
func (Site) TableName() string {
	return "sites"
}
