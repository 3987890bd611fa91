package constants

// 支付单状态常量（按生命周期顺序）
const (
	PaymentStateEmpty           = "empty"
	PaymentStateOpen            = "open"
	PaymentStateAwaitingReceipt = "awaiting_receipt"
	PaymentStatePending         = "pending"
	PaymentStatePaid            = "paid"
	PaymentStateExpired         = "expired"
	PaymentStateVoided          = "voided"
)

// PaymentStateOrder 支付单状态的规范顺序，仅允许向后流转
var PaymentStateOrder = []string{
	PaymentStateEmpty,
	PaymentStateOpen,
	PaymentStateAwaitingReceipt,
	PaymentStatePending,
	PaymentStatePaid,
}

// 推荐树相关常量
const (
	// TreeExtendMaxLevel 增量扩展时祖先可获得佣金的最大层级
	TreeExtendMaxLevel = 3
	// TreeMinRebuildLevel 全量重建时最少展开的层级
	TreeMinRebuildLevel = 3
	// MaxTreeDepth 全量重建的绝对安全上限
	MaxTreeDepth = 128
	// MaxRateDepth 佣金比例向量的最大长度
	MaxRateDepth = 8
	// PaymentMinLevels 支付单按层级明细至少展示的层级数
	PaymentMinLevels = 3
)

// 账期相关常量
const (
	// PaymentExpireYears 待收据支付单过期年限
	PaymentExpireYears = 2
	// SupplierShareRate 供应商分成比例
	SupplierShareRate = "0.3"
	// SupplierActivationWindowYears 供应商分成统计的卡片激活窗口
	SupplierActivationWindowYears = 1
	// DefaultCommissionWindowMonths 默认佣金计算窗口（激活后月数）
	DefaultCommissionWindowMonths = 12
)

// 导入列名
const (
	ImportColumnRechargeDate   = "Data Recarga"
	ImportColumnSIM            = "Sim"
	ImportColumnPhone          = "Msisdn Activação"
	ImportColumnRechargeValue  = "Valor Recarga"
	ImportColumnActivationDate = "Contract Date With Optimus"
	// ImportPhoneCountryPrefix 手机号国家前缀，导入时去除
	ImportPhoneCountryPrefix = "351"
)

// ImportRequiredColumns 导入时必须存在的列
var ImportRequiredColumns = []string{
	ImportColumnRechargeDate,
	ImportColumnSIM,
	ImportColumnPhone,
	ImportColumnRechargeValue,
	ImportColumnActivationDate,
}

// 卡片订单常量
const (
	// CardOrderCancelWindowDays 发货后允许撤销的天数
	CardOrderCancelWindowDays = 45
)

// 对账模式
const (
	ReconcileModeDryRun = "dry_run"
	ReconcileModeApply  = "apply"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 任务类型常量
const (
	TaskCloseMonth     = "ledger:close_month"
	TaskTierSweep      = "ledger:tier_sweep"
	TaskReconcile      = "ledger:reconcile"
	TaskExpirePayments = "ledger:expire_payments"
)

// 缓存 key 前缀
const (
	CacheKeyTierCatalog = "tiers"
	LeaseKeyCloseMonth  = "lease:close_month"
)
