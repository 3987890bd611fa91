package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 关账等关键任务队列
	CriticalQueue = constants.QueueCritical
)

// ErrQueueDisabled 队列未启用
var ErrQueueDisabled = errors.New("queue disabled")

// Client 队列客户端封装
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端；未启用时返回空客户端，所有投递返回 ErrQueueDisabled
func NewClient(cfg *config.QueueConfig) *Client {
	if cfg == nil || !cfg.Enabled {
		return &Client{}
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg))}
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if !c.Enabled() {
		return nil, ErrQueueDisabled
	}
	return c.client.Enqueue(task, opts...)
}

// EnqueueCloseMonth 投递关账任务，同一账期只保留一个待执行任务
func (c *Client) EnqueueCloseMonth(payload CloseMonthPayload) (*asynq.TaskInfo, error) {
	task, err := NewCloseMonthTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(task,
		asynq.Queue(CriticalQueue),
		asynq.TaskID(fmt.Sprintf("close_month:%d:%d", payload.SiteID, payload.MonthID)),
		asynq.MaxRetry(3),
	)
}

// EnqueueTierSweep 投递等级晋升扫描任务
func (c *Client) EnqueueTierSweep(payload TierSweepPayload) (*asynq.TaskInfo, error) {
	task, err := NewTierSweepTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(task, asynq.Queue(DefaultQueue))
}

// EnqueueReconcile 投递对账任务
func (c *Client) EnqueueReconcile(payload ReconcilePayload) (*asynq.TaskInfo, error) {
	task, err := NewReconcileTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(task, asynq.Queue(DefaultQueue), asynq.MaxRetry(1))
}

// EnqueueExpirePayments 投递过期结算单作废任务
func (c *Client) EnqueueExpirePayments(payload ExpirePaymentsPayload) (*asynq.TaskInfo, error) {
	task, err := NewExpirePaymentsTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(task, asynq.Queue(DefaultQueue))
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 4
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{CriticalQueue: 2, DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	opt := asynq.RedisClientOpt{}
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		opt.Password = cfg.Password
		opt.DB = cfg.DB
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	return opt
}
