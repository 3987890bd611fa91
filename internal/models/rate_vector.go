package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teamledger/internal/constants"

	"github.com/shopspring/decimal"
)

// RateVector 按层级的佣金比例（百分比），固定容量，超出长度的层级视为 0
type RateVector struct {
	rates [constants.MaxRateDepth]decimal.Decimal
	size  int
}

// NewRateVector 由百分比列表创建比例向量，超出容量的部分被截断
func NewRateVector(percents ...decimal.Decimal) RateVector {
	var v RateVector
	for i, p := range percents {
		if i >= constants.MaxRateDepth {
			break
		}
		v.rates[i] = p
		v.size++
	}
	return v
}

// NewRateVectorFromInts 由整数百分比创建比例向量
func NewRateVectorFromInts(percents ...int64) RateVector {
	values := make([]decimal.Decimal, 0, len(percents))
	for _, p := range percents {
		values = append(values, decimal.NewFromInt(p))
	}
	return NewRateVector(values...)
}

// ParseRateVector 解析逗号分隔的百分比列表，如 "10,5,2"
func ParseRateVector(raw string) (RateVector, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RateVector{}, nil
	}
	parts := strings.Split(trimmed, ",")
	if len(parts) > constants.MaxRateDepth {
		return RateVector{}, fmt.Errorf("rate vector longer than %d levels", constants.MaxRateDepth)
	}
	values := make([]decimal.Decimal, 0, len(parts))
	for _, part := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			return RateVector{}, fmt.Errorf("invalid rate %q: %w", part, err)
		}
		if d.IsNegative() {
			return RateVector{}, fmt.Errorf("negative rate %q", part)
		}
		values = append(values, d)
	}
	return NewRateVector(values...), nil
}

// Len 返回向量长度
func (v RateVector) Len() int {
	return v.size
}

// Percent 返回指定层级（从 1 开始）的百分比，超出长度返回 0
func (v RateVector) Percent(level int) decimal.Decimal {
	if level < 1 || level > v.size {
		return decimal.Zero
	}
	return v.rates[level-1]
}

// Fraction 返回指定层级的比例（百分比 / 100）
func (v RateVector) Fraction(level int) decimal.Decimal {
	return v.Percent(level).Div(decimal.NewFromInt(100))
}

// Percents 返回有效部分的拷贝
func (v RateVector) Percents() []decimal.Decimal {
	out := make([]decimal.Decimal, v.size)
	copy(out, v.rates[:v.size])
	return out
}

// Equal 比较两个向量
func (v RateVector) Equal(other RateVector) bool {
	if v.size != other.size {
		return false
	}
	for i := 0; i < v.size; i++ {
		if !v.rates[i].Equal(other.rates[i]) {
			return false
		}
	}
	return true
}

// String 输出逗号分隔格式
func (v RateVector) String() string {
	parts := make([]string, 0, v.size)
	for i := 0; i < v.size; i++ {
		parts = append(parts, v.rates[i].String())
	}
	return strings.Join(parts, ",")
}

// Value 实现 driver.Valuer 接口
func (v RateVector) Value() (driver.Value, error) {
	return v.String(), nil
}

// Scan 实现 sql.Scanner 接口
func (v *RateVector) Scan(value interface{}) error {
	var raw string
	switch val := value.(type) {
	case nil:
		*v = RateVector{}
		return nil
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("unsupported rate vector type %T", value)
	}
	parsed, err := ParseRateVector(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON 输出百分比数组
func (v RateVector) MarshalJSON() ([]byte, error) {
	out := make([]string, 0, v.size)
	for i := 0; i < v.size; i++ {
		out = append(out, v.rates[i].String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON 解析百分比数组（字符串或数字）
func (v *RateVector) UnmarshalJSON(b []byte) error {
	var items []json.Number
	if err := json.Unmarshal(b, &items); err != nil {
		var strs []string
		if err2 := json.Unmarshal(b, &strs); err2 != nil {
			return err
		}
		parsed, err := ParseRateVector(strings.Join(strs, ","))
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.String())
	}
	parsed, err := ParseRateVector(strings.Join(parts, ","))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
