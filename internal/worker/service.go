package worker

import (
	"context"
	"errors"
	"time"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务，附带周期性巡检
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	ledger   config.LedgerConfig
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, ledger config.LedgerConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = newAsynqLogger()
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		ledger:   ledger,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if interval := s.ledger.ExpireSweepInterval(); interval > 0 {
		go runEvery(ctx, interval, s.consumer.expireOnce)
	}
	if interval := s.ledger.TierSweepInterval(); interval > 0 {
		go runEvery(ctx, interval, s.consumer.sweepAllSites)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runEvery 立即执行一次，然后按间隔重复执行直到 ctx 结束
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (c *Consumer) expireOnce(ctx context.Context) {
	if _, err := c.LedgerService.ExpireStalePayments(ctx, c.now()); err != nil {
		logger.Warnw("worker_expire_sweep_failed", "error", err)
	}
}

// sweepAllSites 对所有站点的开放账期执行晋升检测
func (c *Consumer) sweepAllSites(ctx context.Context) {
	sites, err := c.MemberService.ListSites(ctx)
	if err != nil {
		logger.Warnw("worker_tier_sweep_list_sites_failed", "error", err)
		return
	}
	for _, site := range sites {
		if ctx.Err() != nil {
			return
		}
		_, _ = c.sweepTiers(ctx, site.ID, 0)
	}
}
