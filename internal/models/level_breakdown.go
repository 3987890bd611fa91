package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LevelLine 单个层级的佣金明细
type LevelLine struct {
	Level   int             `json:"level"`   // 层级，从 1 开始
	Percent decimal.Decimal `json:"percent"` // 计佣比例（%）
	Count   int64           `json:"count"`   // 计入的充值笔数
	Amount  Money           `json:"amount"`  // 佣金金额
}

// LevelBreakdown 按层级的佣金明细，下标 0 对应第 1 层
type LevelBreakdown []LevelLine

// Value 实现 driver.Valuer 接口
func (l LevelBreakdown) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (l *LevelBreakdown) Scan(value interface{}) error {
	if value == nil {
		*l = LevelBreakdown{}
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// Total 明细金额合计
func (l LevelBreakdown) Total() Money {
	total := decimal.Zero
	for _, line := range l {
		total = total.Add(line.Amount.Decimal)
	}
	return NewMoneyFromDecimal(total)
}

// At 返回第 level 层的明细（从 1 开始），越界返回零值
func (l LevelBreakdown) At(level int) LevelLine {
	if level < 1 || level > len(l) {
		return LevelLine{Level: level, Amount: ZeroMoney()}
	}
	return l[level-1]
}

// Equal 比较两份明细的比例、笔数与金额
func (l LevelBreakdown) Equal(other LevelBreakdown) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		a, b := l[i], other[i]
		if a.Level != b.Level || a.Count != b.Count || !a.Percent.Equal(b.Percent) || !a.Amount.Equal(b.Amount.Decimal) {
			return false
		}
	}
	return true
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", value)
	}
}
