package queue

import (
	"encoding/json"
	"time"

	"github.com/teamledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCloseMonth 关账任务
	TaskCloseMonth = constants.TaskCloseMonth
	// TaskTierSweep 等级晋升扫描任务
	TaskTierSweep = constants.TaskTierSweep
	// TaskReconcile 推荐树对账任务
	TaskReconcile = constants.TaskReconcile
	// TaskExpirePayments 过期结算单作废任务
	TaskExpirePayments = constants.TaskExpirePayments
)

// CloseMonthPayload 关账任务载荷
type CloseMonthPayload struct {
	SiteID  uint `json:"site_id"`
	MonthID uint `json:"month_id"`
}

// TierSweepPayload 等级晋升扫描载荷，MonthID 为 0 时使用站点当前开放账期
type TierSweepPayload struct {
	SiteID  uint `json:"site_id"`
	MonthID uint `json:"month_id"`
}

// ReconcilePayload 对账任务载荷，UserID 为 0 时处理站点全部成员
type ReconcilePayload struct {
	SiteID uint   `json:"site_id"`
	UserID uint   `json:"user_id"`
	Mode   string `json:"mode"`
}

// ExpirePaymentsPayload 过期结算单作废载荷，RequestedAt 为判断过期的基准时间
type ExpirePaymentsPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// NewCloseMonthTask 创建关账任务
func NewCloseMonthTask(payload CloseMonthPayload) (*asynq.Task, error) {
	return newTask(TaskCloseMonth, payload)
}

// NewTierSweepTask 创建等级晋升扫描任务
func NewTierSweepTask(payload TierSweepPayload) (*asynq.Task, error) {
	return newTask(TaskTierSweep, payload)
}

// NewReconcileTask 创建对账任务
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	return newTask(TaskReconcile, payload)
}

// NewExpirePaymentsTask 创建过期结算单作废任务
func NewExpirePaymentsTask(payload ExpirePaymentsPayload) (*asynq.Task, error) {
	return newTask(TaskExpirePayments, payload)
}
