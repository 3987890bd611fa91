package models

import "time"

// CardMovement 卡片充值流水（不可变）
type CardMovement struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                           // 主键
	SiteID      uint      `gorm:"not null;index;uniqueIndex:idx_card_movement_dedup" json:"site_id"`              // 站点ID
	ImportID    uint      `gorm:"not null;index" json:"import_id"`                                                // 导入批次
	MonthID     uint      `gorm:"not null;index" json:"month_id"`                                                 // 账期
	CardID      uint      `gorm:"not null;index" json:"card_id"`                                                  // 卡片
	Value       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"value"`                             // 充值金额（含税）
	ValueNet    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"value_net"`                         // 充值金额（不含税）
	MovedAt     time.Time `gorm:"not null;index" json:"moved_at"`                                                 // 充值日期
	DedupKey    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_card_movement_dedup" json:"dedup_key"` // 内容去重键
	CardExpired bool      `gorm:"not null;default:false;index" json:"card_expired"`                               // 入库时卡片是否已超出佣金窗口
	CreatedAt   time.Time `json:"created_at"`                                                                     // 创建时间
}

// TableName 指定表名
func (CardMovement) TableName() string {
	return "card_movements"
}

// MovementImport 流水导入批次
type MovementImport struct {
	ID         uint       `gorm:"primarykey" json:"id"`                         // 主键
	SiteID     uint       `gorm:"not null;index" json:"site_id"`                // 站点ID
	MonthID    uint       `gorm:"not null;index" json:"month_id"`               // 账期
	BatchNo    string     `gorm:"type:varchar(64);uniqueIndex" json:"batch_no"` // 批次号
	Source     string     `gorm:"type:varchar(255)" json:"source"`              // 来源文件名
	Imported   int        `gorm:"not null;default:0" json:"imported"`           // 导入条数
	Ignored    int        `gorm:"not null;default:0" json:"ignored"`            // 忽略条数
	Duplicated int        `gorm:"not null;default:0" json:"duplicated"`         // 重复条数
	Report     string     `gorm:"type:text" json:"report"`                      // 处理日志
	StartedAt  time.Time  `json:"started_at"`                                   // 开始时间
	FinishedAt *time.Time `json:"finished_at,omitempty"`                        // 完成时间
}

// TableName 指定表名
func (MovementImport) TableName() string {
	return "movement_imports"
}
