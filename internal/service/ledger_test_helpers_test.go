package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ledgerTestSeq atomic.Int64

func nextLedgerTestKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, ledgerTestSeq.Add(1))
}

type ledgerTestEnv struct {
	db          *gorm.DB
	tiers       *TierService
	tree        *TreeService
	commission  *CommissionService
	transitions *TierTransitionService
	ledger      *LedgerService
	reconcile   *ReconcileService
	movements   *MovementService
	cards       *CardService
	members     *MemberService
}

func setupLedgerServiceTest(t *testing.T) *ledgerTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	siteRepo := repository.NewSiteRepository(db)
	tierRepo := repository.NewTierRepository(db)
	userRepo := repository.NewUserRepository(db)
	cardRepo := repository.NewCardRepository(db)
	edgeRepo := repository.NewTeamEdgeRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	monthRepo := repository.NewMonthRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	env := &ledgerTestEnv{db: db}
	env.tiers = NewTierService(tierRepo, siteRepo, edgeRepo)
	env.tree = NewTreeService(edgeRepo, userRepo, cardRepo, env.tiers)
	env.commission = NewCommissionService(commissionRepo)
	env.transitions = NewTierTransitionService(userRepo, env.commission, env.tiers, env.tree)
	env.ledger = NewLedgerService(monthRepo, paymentRepo, userRepo, siteRepo, movementRepo, env.commission, time.Minute)
	env.reconcile = NewReconcileService(userRepo, env.tree)
	env.movements = NewMovementService(movementRepo, cardRepo, monthRepo, siteRepo, env.transitions, env.ledger)
	env.cards = NewCardService(cardRepo, userRepo, edgeRepo, siteRepo, env.tree)
	env.members = NewMemberService(siteRepo, userRepo, env.tiers, env.tree)
	return env
}

func createTestSite(t *testing.T, db *gorm.DB, adminDeduction string) *models.Site {
	t.Helper()
	site := &models.Site{
		Name:                   nextLedgerTestKey("site"),
		AdminDeductionDefault:  models.MustMoney(adminDeduction),
		CommissionWindowMonths: 12,
	}
	if err := db.Create(site).Error; err != nil {
		t.Fatalf("create site failed: %v", err)
	}
	return site
}

func createTestTier(t *testing.T, db *gorm.DB, siteID uint, name string, threshold int64, percents ...int64) *models.Tier {
	t.Helper()
	tier := &models.Tier{SiteID: siteID, Name: name, Threshold: threshold, Rates: models.NewRateVectorFromInts(percents...)}
	if err := db.Create(tier).Error; err != nil {
		t.Fatalf("create tier failed: %v", err)
	}
	return tier
}

func createTestUser(t *testing.T, db *gorm.DB, siteID, tierID uint, name string) *models.User {
	t.Helper()
	user := &models.User{SiteID: siteID, TierID: tierID, Name: name, NIF: nextLedgerTestKey("nif")}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func createTestCard(t *testing.T, db *gorm.DB, siteID uint, sellerID, ownerID *uint) *models.Card {
	t.Helper()
	activatedAt := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	card := &models.Card{
		SiteID:      siteID,
		SIM:         nextLedgerTestKey("sim"),
		Phone:       nextLedgerTestKey("9"),
		SellerID:    sellerID,
		OwnerID:     ownerID,
		ActivatedAt: &activatedAt,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	return card
}

func createTestEdge(t *testing.T, db *gorm.DB, userID, cardID uint, level int, rate string) {
	t.Helper()
	edge := &models.TeamEdge{UserID: userID, CardID: cardID, Level: level, CommissionRate: decimal.RequireFromString(rate)}
	if err := db.Create(edge).Error; err != nil {
		t.Fatalf("create edge failed: %v", err)
	}
}

func createTestMonth(t *testing.T, db *gorm.DB, siteID uint, year int, month time.Month) *models.Month {
	t.Helper()
	startsAt := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	item := newMonth(siteID, startsAt)
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create month failed: %v", err)
	}
	return item
}

func createTestMovement(t *testing.T, db *gorm.DB, month *models.Month, cardID uint, net string) {
	t.Helper()
	movement := &models.CardMovement{
		SiteID:   month.SiteID,
		MonthID:  month.ID,
		CardID:   cardID,
		Value:    models.MustMoney(net),
		ValueNet: models.MustMoney(net),
		MovedAt:  month.StartsAt.AddDate(0, 0, 9),
		DedupKey: nextLedgerTestKey("key"),
	}
	if err := db.Create(movement).Error; err != nil {
		t.Fatalf("create movement failed: %v", err)
	}
}

func listTestEdges(t *testing.T, db *gorm.DB, userID uint) []models.TeamEdge {
	t.Helper()
	var edges []models.TeamEdge
	if err := db.Where("user_id = ?", userID).Order("card_id ASC").Find(&edges).Error; err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	return edges
}

func uintPtr(v uint) *uint {
	return &v
}

func moneyEquals(m models.Money, want string) bool {
	return m.Equal(decimal.RequireFromString(want))
}
