package router

import (
	"fmt"
	"strings"

	"github.com/teamledger/internal/cache"
	"github.com/teamledger/internal/config"
	adminhandlers "github.com/teamledger/internal/http/handlers/admin"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if strings.EqualFold(cfg.Server.Mode, "release") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	tokens := service.NewOperatorTokenService(cfg.JWT)
	adminHandler := adminhandlers.New(c, tokens)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tl"
	}
	redisClient := cache.Client()
	heavyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:ledger", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   10,
	}
	heavy := RateLimitMiddleware(redisClient, heavyRule, KeyBySiteAndOperator)

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"redis": cache.Enabled(), "queue": c.QueueClient.Enabled()})
	})

	admin := r.Group("/api/v1/admin")
	admin.Use(OperatorAuthMiddleware(tokens))
	{
		admin.GET("/sites", adminHandler.ListSites)

		super := admin.Group("")
		super.Use(SuperOperatorMiddleware())
		{
			super.POST("/tokens", adminHandler.IssueToken)
			super.POST("/sites", adminHandler.CreateSite)
			super.POST("/maintenance/expire-payments", adminHandler.ExpirePayments)
			super.GET("/roles", adminHandler.ListRoles)
			super.GET("/roles/:role/policies", adminHandler.GetRolePolicies)
			super.GET("/operators/:operator/roles", adminHandler.GetOperatorRoles)
			super.PUT("/operators/:operator/roles", adminHandler.SetOperatorRoles)
		}

		site := admin.Group("/sites/:site_id")
		site.Use(SiteScopeMiddleware(), OperatorRBACMiddleware(c.AuthzService))
		{
			site.GET("", adminHandler.GetSite)
			site.PUT("", adminHandler.UpdateSite)

			site.GET("/tiers", adminHandler.ListTiers)
			site.POST("/tiers", adminHandler.CreateTier)
			site.PUT("/tiers/:tier_id", adminHandler.UpdateTier)

			site.GET("/users", adminHandler.ListUsers)
			site.POST("/users", adminHandler.CreateUser)
			site.GET("/users/:user_id", adminHandler.GetUser)
			site.PUT("/users/:user_id", adminHandler.UpdateUser)
			site.POST("/users/:user_id/deactivate", adminHandler.DeactivateUser)
			site.POST("/users/:user_id/card", adminHandler.AttachMemberCard)

			site.GET("/cards", adminHandler.ListCards)
			site.POST("/cards/:card_id/owner", adminHandler.AssignOwnerCard)
			site.POST("/card-orders", adminHandler.CreateCardOrder)
			site.GET("/card-orders/:order_id", adminHandler.GetCardOrder)
			site.POST("/card-orders/:order_id/expedite", adminHandler.ExpediteCardOrder)
			site.POST("/card-orders/:order_id/reject", adminHandler.RejectCardOrder)
			site.POST("/card-orders/:order_id/cancel", adminHandler.CancelCardExpedition)

			site.GET("/months", adminHandler.ListMonths)
			site.POST("/months", adminHandler.OpenMonth)
			site.GET("/months/current", adminHandler.GetCurrentMonth)
			site.GET("/months/:month_id", adminHandler.GetMonth)
			site.POST("/months/:month_id/close", heavy, adminHandler.CloseMonth)
			site.POST("/months/:month_id/refresh", adminHandler.RefreshMonth)
			site.POST("/months/:month_id/transitions", heavy, adminHandler.DetectTransitions)
			site.POST("/months/:month_id/imports", heavy, adminHandler.ImportMovements)
			site.GET("/months/:month_id/imports", adminHandler.ListImports)
			site.POST("/months/:month_id/users/:user_id/correction", adminHandler.CorrectPayment)
			site.GET("/imports/:import_id", adminHandler.GetImport)

			site.GET("/payments", adminHandler.ListPayments)
			site.GET("/payments/:payment_id", adminHandler.GetPayment)
			site.PATCH("/payments/:payment_id", adminHandler.EditPayment)
			site.POST("/payments/:payment_id/state", adminHandler.MarkPayment)
			site.POST("/payments/:payment_id/refresh", adminHandler.RefreshPayment)

			site.GET("/commissions", adminHandler.CommissionSummary)
			site.POST("/reconcile", heavy, adminHandler.Reconcile)
		}
	}

	return r
}
