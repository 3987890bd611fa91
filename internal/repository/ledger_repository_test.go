package repository

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teamledger/internal/constants"
	"github.com/teamledger/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var repoTestSeq atomic.Int64

func nextRepoTestKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, repoTestSeq.Add(1))
}

func setupLedgerRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepoUser(t *testing.T, db *gorm.DB, siteID, tierID uint, name string) *models.User {
	t.Helper()
	user := &models.User{SiteID: siteID, TierID: tierID, Name: name}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func createRepoCard(t *testing.T, db *gorm.DB, siteID uint, sellerID, ownerID *uint, activatedAt *time.Time) *models.Card {
	t.Helper()
	card := &models.Card{SiteID: siteID, SIM: nextRepoTestKey("sim"), SellerID: sellerID, OwnerID: ownerID, ActivatedAt: activatedAt}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	return card
}

func createRepoEdge(t *testing.T, db *gorm.DB, userID, cardID uint, level int, rate string, disabled bool) {
	t.Helper()
	edge := &models.TeamEdge{
		UserID:             userID,
		CardID:             cardID,
		Level:              level,
		CommissionRate:     decimal.RequireFromString(rate),
		CommissionDisabled: disabled,
	}
	if err := db.Create(edge).Error; err != nil {
		t.Fatalf("create edge failed: %v", err)
	}
}

func createRepoMovement(t *testing.T, db *gorm.DB, siteID, monthID, cardID uint, net string, expired bool) {
	t.Helper()
	movement := &models.CardMovement{
		SiteID:      siteID,
		MonthID:     monthID,
		CardID:      cardID,
		Value:       models.MustMoney(net),
		ValueNet:    models.MustMoney(net),
		MovedAt:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		DedupKey:    nextRepoTestKey("key"),
		CardExpired: expired,
	}
	if err := db.Create(movement).Error; err != nil {
		t.Fatalf("create movement failed: %v", err)
	}
}

func uintPtr(v uint) *uint {
	return &v
}

func TestTeamEdgeRepositoryListFrontierCardsSkipsExistingEdges(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewTeamEdgeRepository(db)

	root := createRepoUser(t, db, 1, 1, "root")
	seller := createRepoUser(t, db, 1, 1, "seller")
	owner := createRepoUser(t, db, 1, 2, "owner")

	inTree := createRepoCard(t, db, 1, uintPtr(seller.ID), nil, nil)
	fresh := createRepoCard(t, db, 1, uintPtr(seller.ID), uintPtr(owner.ID), nil)
	createRepoCard(t, db, 2, uintPtr(seller.ID), nil, nil)
	createRepoEdge(t, db, root.ID, inTree.ID, 1, "0.1", false)

	rows, err := repo.ListFrontierCards(1, root.ID, []uint{seller.ID})
	if err != nil {
		t.Fatalf("list frontier failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("frontier size want 1 got %d", len(rows))
	}
	if rows[0].CardID != fresh.ID || rows[0].SellerID != seller.ID {
		t.Fatalf("unexpected frontier row: %+v", rows[0])
	}
	if rows[0].OwnerID == nil || *rows[0].OwnerID != owner.ID {
		t.Fatalf("owner id want %d got %v", owner.ID, rows[0].OwnerID)
	}
	if rows[0].OwnerTierID == nil || *rows[0].OwnerTierID != 2 {
		t.Fatalf("owner tier want 2 got %v", rows[0].OwnerTierID)
	}
}

func TestTeamEdgeRepositoryDisableDeeperInOtherTrees(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewTeamEdgeRepository(db)

	capper := createRepoUser(t, db, 1, 1, "capper")
	above := createRepoUser(t, db, 1, 1, "above")
	card := createRepoCard(t, db, 1, nil, nil, nil)
	other := createRepoCard(t, db, 1, nil, nil, nil)

	createRepoEdge(t, db, capper.ID, card.ID, 1, "0.1", false)
	createRepoEdge(t, db, above.ID, card.ID, 2, "0.05", false)
	createRepoEdge(t, db, above.ID, other.ID, 1, "0.1", false)

	affected, err := repo.DisableDeeperInOtherTrees(capper.ID)
	if err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected want 1 got %d", affected)
	}

	edges, err := repo.ListByRoot(above.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	for _, edge := range edges {
		if edge.CardID == card.ID && !edge.CommissionDisabled {
			t.Fatalf("deeper edge should be disabled")
		}
		if edge.CardID == other.ID && edge.CommissionDisabled {
			t.Fatalf("unrelated edge should stay enabled")
		}
	}
	own, err := repo.ListByRoot(capper.ID)
	if err != nil {
		t.Fatalf("list own edges failed: %v", err)
	}
	if len(own) != 1 || own[0].CommissionDisabled {
		t.Fatalf("own edge should stay enabled: %+v", own)
	}
}

func TestTeamEdgeRepositoryRatesByLevel(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewTeamEdgeRepository(db)

	root := createRepoUser(t, db, 1, 1, "root")
	now := time.Now().UTC()
	c1 := createRepoCard(t, db, 1, nil, nil, &now)
	c2 := createRepoCard(t, db, 1, nil, nil, &now)
	c3 := createRepoCard(t, db, 1, nil, nil, nil)
	createRepoEdge(t, db, root.ID, c1.ID, 1, "0.1", false)
	createRepoEdge(t, db, root.ID, c2.ID, 2, "0.05", false)
	createRepoEdge(t, db, root.ID, c3.ID, 4, "0.01", false)

	if err := repo.UpdateRateByLevel(root.ID, 2, decimal.RequireFromString("0.08")); err != nil {
		t.Fatalf("update rate failed: %v", err)
	}
	if err := repo.ZeroRatesBeyond(root.ID, 3); err != nil {
		t.Fatalf("zero rates failed: %v", err)
	}
	edges, err := repo.ListByRoot(root.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	want := map[int]string{1: "0.1", 2: "0.08", 4: "0"}
	for _, edge := range edges {
		if !edge.CommissionRate.Equal(decimal.RequireFromString(want[edge.Level])) {
			t.Fatalf("level %d rate want %s got %s", edge.Level, want[edge.Level], edge.CommissionRate)
		}
	}

	stats, err := repo.CountActivatedByLevel(root.ID)
	if err != nil {
		t.Fatalf("count by level failed: %v", err)
	}
	if len(stats) != 2 || stats[0].Level != 1 || stats[0].Count != 1 || stats[1].Level != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTeamEdgeRepositoryTierRatesSkipCustomRoots(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewTeamEdgeRepository(db)

	plain := createRepoUser(t, db, 1, 3, "plain")
	custom := createRepoUser(t, db, 1, 3, "custom")
	other := createRepoUser(t, db, 1, 4, "other")
	if err := db.Model(&models.User{}).Where("id = ?", custom.ID).
		Update("custom_rates", models.NewRateVectorFromInts(30)).Error; err != nil {
		t.Fatalf("set custom rates failed: %v", err)
	}
	card := createRepoCard(t, db, 1, nil, nil, nil)
	createRepoEdge(t, db, plain.ID, card.ID, 1, "0.1", false)
	createRepoEdge(t, db, plain.ID, card.ID, 3, "0.02", false)
	createRepoEdge(t, db, custom.ID, card.ID, 1, "0.3", false)
	createRepoEdge(t, db, other.ID, card.ID, 1, "0.1", false)

	if err := repo.UpdateTierRateByLevel(3, 1, decimal.RequireFromString("0.2")); err != nil {
		t.Fatalf("update tier rate failed: %v", err)
	}
	if err := repo.ZeroTierRatesBeyond(3, 2); err != nil {
		t.Fatalf("zero tier rates failed: %v", err)
	}

	want := map[uint]map[int]string{
		plain.ID:  {1: "0.2", 3: "0"},
		custom.ID: {1: "0.3"},
		other.ID:  {1: "0.1"},
	}
	for userID, levels := range want {
		edges, err := repo.ListByRoot(userID)
		if err != nil {
			t.Fatalf("list edges failed: %v", err)
		}
		for _, edge := range edges {
			if !edge.CommissionRate.Equal(decimal.RequireFromString(levels[edge.Level])) {
				t.Fatalf("user %d level %d rate want %s got %s", userID, edge.Level, levels[edge.Level], edge.CommissionRate)
			}
		}
	}
}

func TestCommissionRepositoryGroupedMatchesTotal(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewCommissionRepository(db)

	u1 := createRepoUser(t, db, 1, 1, "u1")
	u2 := createRepoUser(t, db, 1, 1, "u2")
	c1 := createRepoCard(t, db, 1, nil, nil, nil)
	c2 := createRepoCard(t, db, 1, nil, nil, nil)
	c3 := createRepoCard(t, db, 1, nil, nil, nil)

	createRepoEdge(t, db, u1.ID, c1.ID, 1, "0.1", false)
	createRepoEdge(t, db, u1.ID, c2.ID, 2, "0.05", false)
	createRepoEdge(t, db, u2.ID, c2.ID, 1, "0.1", false)
	createRepoEdge(t, db, u2.ID, c3.ID, 1, "0.1", true)

	createRepoMovement(t, db, 1, 10, c1.ID, "100", false)
	createRepoMovement(t, db, 1, 10, c2.ID, "40", false)
	createRepoMovement(t, db, 1, 10, c3.ID, "50", false)
	createRepoMovement(t, db, 1, 10, c1.ID, "70", true)
	createRepoMovement(t, db, 1, 11, c1.ID, "30", false)

	filter := CommissionFilter{SiteID: 1, MonthIDs: []uint{10}}
	total, err := repo.Sum(filter)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	// u1: 100*0.1 + 40*0.05 = 12; u2: 40*0.1 = 4
	if !total.Amount.Round(2).Equal(decimal.NewFromInt(16)) {
		t.Fatalf("total want 16 got %s", total.Amount)
	}
	if total.Count != 3 {
		t.Fatalf("count want 3 got %d", total.Count)
	}

	levels, err := repo.SumByLevel(filter)
	if err != nil {
		t.Fatalf("sum by level failed: %v", err)
	}
	levelSum := decimal.Zero
	for _, row := range levels {
		levelSum = levelSum.Add(row.Amount)
	}
	if !levelSum.Round(2).Equal(total.Amount.Round(2)) {
		t.Fatalf("level sum %s should equal total %s", levelSum, total.Amount)
	}

	users, err := repo.SumByUser(filter)
	if err != nil {
		t.Fatalf("sum by user failed: %v", err)
	}
	if len(users) != 2 || users[0].UserID != u1.ID || !users[0].Amount.Round(2).Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected user rows: %+v", users)
	}

	withDisabled, err := repo.SumByUser(CommissionFilter{SiteID: 1, MonthIDs: []uint{10}, UserIDs: []uint{u2.ID}, IncludeDisabled: true})
	if err != nil {
		t.Fatalf("sum with disabled failed: %v", err)
	}
	if len(withDisabled) != 1 || withDisabled[0].Count != 2 {
		t.Fatalf("disabled edges should be counted when included: %+v", withDisabled)
	}

	both, err := repo.Sum(CommissionFilter{SiteID: 1, MonthIDs: []uint{10, 11}})
	if err != nil {
		t.Fatalf("sum multi month failed: %v", err)
	}
	single, err := repo.Sum(CommissionFilter{SiteID: 1, MonthIDs: []uint{11}})
	if err != nil {
		t.Fatalf("sum single month failed: %v", err)
	}
	if !both.Amount.Round(2).Equal(total.Amount.Add(single.Amount).Round(2)) {
		t.Fatalf("multi month sum %s should equal %s + %s", both.Amount, total.Amount, single.Amount)
	}
}

func TestMonthRepositoryOpenAndClosed(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewMonthRepository(db)

	closedAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	jan := &models.Month{SiteID: 1, Label: "Jan 2024", StartsAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndsAt: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), ClosedAt: &closedAt}
	feb := &models.Month{SiteID: 1, Label: "Feb 2024", StartsAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), EndsAt: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)}
	for _, month := range []*models.Month{jan, feb} {
		if err := repo.Create(month); err != nil {
			t.Fatalf("create month failed: %v", err)
		}
	}

	open, err := repo.GetOpen(1)
	if err != nil || open == nil || open.ID != feb.ID {
		t.Fatalf("open month want %d got %+v err=%v", feb.ID, open, err)
	}
	last, err := repo.GetLastClosed(1)
	if err != nil || last == nil || last.ID != jan.ID {
		t.Fatalf("last closed want %d got %+v err=%v", jan.ID, last, err)
	}
	containing, err := repo.GetContaining(1, time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC))
	if err != nil || containing == nil || containing.ID != jan.ID {
		t.Fatalf("containing want %d got %+v err=%v", jan.ID, containing, err)
	}
	missing, err := repo.GetOpen(2)
	if err != nil || missing != nil {
		t.Fatalf("other site should have no open month, got %+v err=%v", missing, err)
	}
}

func TestPaymentRepositorySumAndStale(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewPaymentRepository(db)

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payments := []models.Payment{
		{SiteID: 1, UserID: 1, MonthID: 5, Premium: models.MustMoney("10"), Payable: models.MustMoney("95"), State: constants.PaymentStateAwaitingReceipt, ClosedAt: &old},
		{SiteID: 1, UserID: 2, MonthID: 5, Payable: models.MustMoney("50"), State: constants.PaymentStateAwaitingReceipt, ClosedAt: &recent},
		{SiteID: 1, UserID: 3, MonthID: 5, Payable: models.MustMoney("500"), State: constants.PaymentStateVoided, ClosedAt: &old},
	}
	for i := range payments {
		if err := repo.Create(&payments[i]); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	totals, err := repo.SumByMonth(5)
	if err != nil {
		t.Fatalf("sum by month failed: %v", err)
	}
	if !totals.Payable.Equal(decimal.NewFromInt(145)) || !totals.Premiums.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	ids, err := repo.ListIDsByStateClosedBefore(constants.PaymentStateAwaitingReceipt, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list stale failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != payments[0].ID {
		t.Fatalf("stale ids want [%d] got %v", payments[0].ID, ids)
	}

	affected, err := repo.UpdateState(ids, constants.PaymentStateExpired, nil)
	if err != nil || affected != 1 {
		t.Fatalf("update state affected=%d err=%v", affected, err)
	}
	list, total, err := repo.List(PaymentListFilter{MonthID: 5})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("voided payment should be hidden, total=%d", total)
	}
}

func TestMovementRepositoryDedupAndSupplierBase(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewMovementRepository(db)

	recent := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	old := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	newCard := createRepoCard(t, db, 1, nil, nil, &recent)
	oldCard := createRepoCard(t, db, 1, nil, nil, &old)

	movements := []models.CardMovement{
		{SiteID: 1, MonthID: 3, CardID: newCard.ID, Value: models.MustMoney("123"), ValueNet: models.MustMoney("100"), MovedAt: recent, DedupKey: "a"},
		{SiteID: 1, MonthID: 3, CardID: oldCard.ID, Value: models.MustMoney("61.5"), ValueNet: models.MustMoney("50"), MovedAt: recent, DedupKey: "b"},
	}
	if err := repo.CreateBatch(movements); err != nil {
		t.Fatalf("create movements failed: %v", err)
	}

	existing, err := repo.ExistingDedupKeys(1, []string{"a", "c"})
	if err != nil {
		t.Fatalf("dedup lookup failed: %v", err)
	}
	if _, ok := existing["a"]; !ok || len(existing) != 1 {
		t.Fatalf("unexpected dedup result: %v", existing)
	}
	other, err := repo.ExistingDedupKeys(2, []string{"a"})
	if err != nil || len(other) != 0 {
		t.Fatalf("dedup keys must be scoped by site: %v err=%v", other, err)
	}

	base, err := repo.SumNetForActivatedSince(1, 3, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("supplier base failed: %v", err)
	}
	if !base.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("supplier base want 100 got %s", base)
	}
}
