package models

import "time"

// Month 月度账期
type Month struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                           // 主键
	SiteID           uint       `gorm:"not null;index" json:"site_id"`                                  // 站点ID
	Label            string     `gorm:"type:varchar(32);not null" json:"label"`                         // 显示名称，如 "Jan 2024"
	StartsAt         time.Time  `gorm:"not null;index" json:"starts_at"`                                // 开始日期
	EndsAt           time.Time  `gorm:"not null" json:"ends_at"`                                        // 结束日期（含）
	ClosedAt         *time.Time `gorm:"index" json:"closed_at,omitempty"`                               // 关账时间
	Commissions      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commissions"`       // 佣金总额
	SupplierShare    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"supplier_share"`    // 供应商分成
	Premiums         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"premiums"`          // 奖金合计
	AdminDeductions  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"admin_deductions"`  // 行政扣款合计
	OperationalCosts Money      `gorm:"type:decimal(20,2);not null;default:0" json:"operational_costs"` // 运营成本合计
	TotalPayable     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_payable"`     // 应付合计
	RefreshedAt      *time.Time `json:"refreshed_at,omitempty"`                                         // 汇总刷新时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (Month) TableName() string {
	return "months"
}

// IsClosed 是否已关账
func (m *Month) IsClosed() bool {
	return m != nil && m.ClosedAt != nil
}

// Contains 判断日期是否落在账期内（按天比较）
func (m *Month) Contains(at time.Time) bool {
	if m == nil {
		return false
	}
	day := truncateDay(at)
	return !day.Before(truncateDay(m.StartsAt)) && !day.After(truncateDay(m.EndsAt))
}

// NextMonthRange 返回下一个自然月的起止日期
func NextMonthRange(startsAt time.Time) (time.Time, time.Time) {
	first := time.Date(startsAt.Year(), startsAt.Month(), 1, 0, 0, 0, 0, startsAt.Location()).AddDate(0, 1, 0)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// MonthLabel 生成账期显示名称
func MonthLabel(startsAt time.Time) string {
	return startsAt.Format("Jan 2006")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
