package service

import "errors"

// 未找到
var (
	ErrSiteNotFound      = errors.New("站点不存在")
	ErrTierNotFound      = errors.New("等级不存在")
	ErrUserNotFound      = errors.New("成员不存在")
	ErrCardNotFound      = errors.New("卡片不存在")
	ErrCardOrderNotFound = errors.New("卡片订单不存在")
	ErrMonthNotFound     = errors.New("账期不存在")
	ErrPaymentNotFound   = errors.New("结算单不存在")
	ErrImportNotFound    = errors.New("导入批次不存在")
)

// 状态不合法
var (
	ErrMonthAlreadyClosed    = errors.New("账期已关账")
	ErrMonthClosing          = errors.New("账期正在关账")
	ErrPaymentStateInvalid   = errors.New("结算单状态流转不合法")
	ErrPaymentNotOpen        = errors.New("结算单不可编辑")
	ErrCardOrderExpedited    = errors.New("卡片订单已发货")
	ErrCardOrderRejected     = errors.New("卡片订单已拒绝")
	ErrCardOrderNotExpedited = errors.New("卡片订单尚未发货")
	ErrCardOrderLocked       = errors.New("卡片订单已超出撤销期限或已有卡片激活")
	ErrSellerWithoutCard     = errors.New("卖家没有绑定卡片")
	ErrCardAlreadyOwned      = errors.New("卡片已绑定成员")
)

// 输入与数据结构
var (
	ErrInvalidInput        = errors.New("参数错误")
	ErrImportColumnMissing = errors.New("导入文件缺少必需的列")
	ErrImportRowInvalid    = errors.New("导入行格式错误")
	ErrTierCatalogEmpty    = errors.New("站点未配置等级")
	ErrRateVectorInvalid   = errors.New("佣金比例格式错误")
)
