package provider

import (
	"github.com/teamledger/internal/authz"
	"github.com/teamledger/internal/cache"
	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/queue"
	"github.com/teamledger/internal/repository"
	"github.com/teamledger/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	SiteRepo       repository.SiteRepository
	TierRepo       repository.TierRepository
	UserRepo       repository.UserRepository
	CardRepo       repository.CardRepository
	TeamEdgeRepo   repository.TeamEdgeRepository
	CommissionRepo repository.CommissionRepository
	MovementRepo   repository.MovementRepository
	MonthRepo      repository.MonthRepository
	PaymentRepo    repository.PaymentRepository

	// Services
	AuthzService          *authz.Service
	TierService           *service.TierService
	TreeService           *service.TreeService
	CommissionService     *service.CommissionService
	TierTransitionService *service.TierTransitionService
	LedgerService         *service.LedgerService
	ReconcileService      *service.ReconcileService
	MovementService       *service.MovementService
	CardService           *service.CardService
	MemberService         *service.MemberService
}

// NewContainer 初始化容器，使用全局数据库连接
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}
	c := NewContainerWithDB(cfg, models.DB)
	c.QueueClient = queue.NewClient(&cfg.Queue)
	return c
}

// NewContainerWithDB 基于指定数据库连接组装仓储与服务
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) *Container {
	if cfg == nil {
		cfg = &config.Config{}
	}
	c := &Container{
		Config:      cfg,
		QueueClient: queue.NewClient(nil),
	}
	c.initRepositories(db)
	c.initServices(db)
	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.SiteRepo = repository.NewSiteRepository(db)
	c.TierRepo = repository.NewTierRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.CardRepo = repository.NewCardRepository(db)
	c.TeamEdgeRepo = repository.NewTeamEdgeRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.MovementRepo = repository.NewMovementRepository(db)
	c.MonthRepo = repository.NewMonthRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService

	c.TierService = service.NewTierService(c.TierRepo, c.SiteRepo, c.TeamEdgeRepo)
	c.TreeService = service.NewTreeService(c.TeamEdgeRepo, c.UserRepo, c.CardRepo, c.TierService)
	c.CommissionService = service.NewCommissionService(c.CommissionRepo)
	c.TierTransitionService = service.NewTierTransitionService(c.UserRepo, c.CommissionService, c.TierService, c.TreeService)
	c.LedgerService = service.NewLedgerService(
		c.MonthRepo,
		c.PaymentRepo,
		c.UserRepo,
		c.SiteRepo,
		c.MovementRepo,
		c.CommissionService,
		c.Config.Ledger.CloseLeaseTTL(),
	)
	c.ReconcileService = service.NewReconcileService(c.UserRepo, c.TreeService)
	c.MovementService = service.NewMovementService(
		c.MovementRepo,
		c.CardRepo,
		c.MonthRepo,
		c.SiteRepo,
		c.TierTransitionService,
		c.LedgerService,
	)
	c.CardService = service.NewCardService(c.CardRepo, c.UserRepo, c.TeamEdgeRepo, c.SiteRepo, c.TreeService)
	c.MemberService = service.NewMemberService(c.SiteRepo, c.UserRepo, c.TierService, c.TreeService)
}
