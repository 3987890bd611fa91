package main

import (
	"context"
	"fmt"
	"time"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	c := provider.NewContainer(cfg)

	// 站点
	site, err := c.MemberService.CreateSite(ctx, service.SaveSiteInput{
		Name:                   "Demo",
		ReportVATPercent:       decimal.NewFromInt(23),
		AdminDeduction:         models.NewMoneyFromDecimal(decimal.NewFromInt(5)),
		CommissionWindowMonths: 12,
		TaxPercent:             decimal.NewFromInt(25),
		WithholdingPercent:     decimal.NewFromInt(0),
	})
	if err != nil {
		stdLog.Fatalf("Failed to create site: %v", err)
	}

	// 等级
	tiers := []service.SaveTierInput{
		{SiteID: site.ID, Name: "Bronze", Threshold: 0, Rates: "5,3,2"},
		{SiteID: site.ID, Name: "Silver", Threshold: 10, Rates: "7,4,3,2"},
		{SiteID: site.ID, Name: "Gold", Threshold: 50, Rates: "10,5,4,3,2"},
	}
	for _, input := range tiers {
		if _, err := c.TierService.CreateTier(ctx, input); err != nil {
			stdLog.Fatalf("Failed to create tier %s: %v", input.Name, err)
		}
	}

	// 成员
	names := []string{"Root", "Ana", "Bruno"}
	users := make([]*models.User, 0, len(names))
	for i, name := range names {
		user, err := c.MemberService.CreateUser(ctx, service.SaveUserInput{
			SiteID:       site.ID,
			Name:         name,
			MemberNumber: fmt.Sprintf("M%04d", i+1),
		})
		if err != nil {
			stdLog.Fatalf("Failed to create user %s: %v", name, err)
		}
		users = append(users, user)
	}

	// 根成员自持卡片，作为推荐树起点
	now := time.Now()
	rootCard := &models.Card{
		SiteID:      site.ID,
		SIM:         "8935100000",
		Phone:       site.HouseCardPhone,
		OwnerID:     &users[0].ID,
		ActivatedAt: &now,
	}
	if err := c.CardRepo.Create(rootCard); err != nil {
		stdLog.Fatalf("Failed to create root card: %v", err)
	}

	// Root -> Ana -> Bruno：上级发卡，下级持卡
	for i := 1; i < len(users); i++ {
		seller, owner := users[i-1], users[i]
		order, err := c.CardService.CreateOrder(ctx, service.CreateCardOrderInput{
			SiteID:   site.ID,
			SellerID: seller.ID,
			Quantity: 2,
			Comment:  "seed",
		})
		if err != nil {
			stdLog.Fatalf("Failed to create card order: %v", err)
		}
		cards, err := c.CardService.ExpediteOrder(ctx, order.ID, service.ExpediteOrderInput{
			SIMs: []string{fmt.Sprintf("89351%05d", i*10+1), fmt.Sprintf("89351%05d", i*10+2)},
		})
		if err != nil {
			stdLog.Fatalf("Failed to expedite order: %v", err)
		}
		if _, err := c.CardService.AssignOwnerCard(ctx, cards[0].ID, owner.ID); err != nil {
			stdLog.Fatalf("Failed to assign owner card: %v", err)
		}
	}

	// 当月账期
	month, err := c.LedgerService.OpenMonth(ctx, site.ID, time.Now())
	if err != nil {
		stdLog.Fatalf("Failed to open month: %v", err)
	}

	token, expiresAt, err := service.NewOperatorTokenService(cfg.JWT).Issue("seed", 0)
	if err != nil {
		stdLog.Fatalf("Failed to issue operator token: %v", err)
	}

	fmt.Printf("site_id=%d month_id=%d users=%d\n", site.ID, month.ID, len(users))
	fmt.Printf("operator token (expires %s):\n%s\n", expiresAt.Format(time.RFC3339), token)
}
