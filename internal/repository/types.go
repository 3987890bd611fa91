package repository

import "time"

// UserListFilter 查询成员列表的过滤条件
type UserListFilter struct {
	Page       int
	PageSize   int
	SiteID     uint
	TierID     uint
	Keyword    string
	OnlyActive bool
}

// CardListFilter 查询卡片列表的过滤条件
type CardListFilter struct {
	Page          int
	PageSize      int
	SiteID        uint
	SellerID      uint
	OwnerID       uint
	OrderID       uint
	Keyword       string
	OnlyActivated bool
}

// MonthListFilter 查询账期列表的过滤条件
type MonthListFilter struct {
	Page       int
	PageSize   int
	SiteID     uint
	OnlyClosed bool
}

// PaymentListFilter 查询结算单列表的过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	SiteID      uint
	MonthID     uint
	UserID      uint
	State       string
	WithVoided  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CommissionFilter 佣金聚合过滤条件
type CommissionFilter struct {
	SiteID          uint
	MonthIDs        []uint
	UserIDs         []uint
	IncludeDisabled bool // 是否包含已停用佣金的边（用于等级计数）
}
