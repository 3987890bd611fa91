package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/models"
	"github.com/teamledger/internal/provider"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type routerTestEnv struct {
	engine *gin.Engine
	tokens *service.OperatorTokenService
	super  string
}

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterTest(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{SecretKey: "router-test", ExpireHours: 1},
	}
	container := provider.NewContainerWithDB(cfg, db)
	tokens := service.NewOperatorTokenService(cfg.JWT)
	super, _, err := tokens.Issue("root", 0)
	if err != nil {
		t.Fatalf("issue super token failed: %v", err)
	}
	return &routerTestEnv{engine: SetupRouter(cfg, container), tokens: tokens, super: super}
}

func (e *routerTestEnv) call(t *testing.T, token, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func decodeData(t *testing.T, resp apiResponse, target interface{}) {
	t.Helper()
	if resp.StatusCode != 0 {
		t.Fatalf("unexpected status_code %d msg=%s", resp.StatusCode, resp.Msg)
	}
	if err := json.Unmarshal(resp.Data, target); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}
}

func TestLedgerRoutesCloseMonthFlow(t *testing.T) {
	env := setupRouterTest(t)

	var site models.Site
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/sites", gin.H{
		"name":                     "Lisboa",
		"commission_window_months": 12,
	}), &site)
	base := fmt.Sprintf("/api/v1/admin/sites/%d", site.ID)

	var tier models.Tier
	decodeData(t, env.call(t, env.super, http.MethodPost, base+"/tiers", gin.H{"name": "A", "threshold": 0, "rates": "5,3,2"}), &tier)
	var user models.User
	decodeData(t, env.call(t, env.super, http.MethodPost, base+"/users", gin.H{"name": "Rita", "nif": "123"}), &user)
	if user.TierID != tier.ID {
		t.Fatalf("new user should default to lowest tier")
	}

	var month models.Month
	decodeData(t, env.call(t, env.super, http.MethodPost, base+"/months", gin.H{"month": "2026-01"}), &month)
	if month.StartsAt.Month() != time.January {
		t.Fatalf("unexpected month start: %s", month.StartsAt)
	}

	closePath := fmt.Sprintf("%s/months/%d/close", base, month.ID)
	var result service.CloseMonthResult
	decodeData(t, env.call(t, env.super, http.MethodPost, closePath, nil), &result)
	if result.NextMonth == nil || result.NextMonth.StartsAt.Month() != time.February {
		t.Fatalf("close should open february, got %+v", result.NextMonth)
	}
	if again := env.call(t, env.super, http.MethodPost, closePath, nil); again.StatusCode != 409 {
		t.Fatalf("second close want 409 got %d", again.StatusCode)
	}

	var current models.Month
	decodeData(t, env.call(t, env.super, http.MethodGet, base+"/months/current", nil), &current)
	if current.ID != result.NextMonth.ID {
		t.Fatalf("current month should be the next month")
	}
}

func TestSiteTokenCannotUseSuperRoutes(t *testing.T) {
	env := setupRouterTest(t)

	var site models.Site
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/sites", gin.H{"name": "Porto"}), &site)
	var other models.Site
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/sites", gin.H{"name": "Faro"}), &other)

	var issued struct {
		Token string `json:"token"`
	}
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/tokens", gin.H{
		"operator": "ana",
		"site_id":  site.ID,
		"roles":    []string{"auditor"},
	}), &issued)
	scoped := issued.Token

	if resp := env.call(t, scoped, http.MethodPost, "/api/v1/admin/sites", gin.H{"name": "X"}); resp.StatusCode != 403 {
		t.Fatalf("scoped token must not create sites, got %d", resp.StatusCode)
	}
	var visible []models.Site
	decodeData(t, env.call(t, scoped, http.MethodGet, "/api/v1/admin/sites", nil), &visible)
	if len(visible) != 1 || visible[0].ID != site.ID {
		t.Fatalf("scoped token should see only its site, got %+v", visible)
	}
	if resp := env.call(t, scoped, http.MethodGet, fmt.Sprintf("/api/v1/admin/sites/%d/users", other.ID), nil); resp.StatusCode != 403 {
		t.Fatalf("foreign site access want 403 got %d", resp.StatusCode)
	}
	var users []models.User
	decodeData(t, env.call(t, scoped, http.MethodGet, fmt.Sprintf("/api/v1/admin/sites/%d/users", site.ID), nil), &users)
	if resp := env.call(t, scoped, http.MethodPost, fmt.Sprintf("/api/v1/admin/sites/%d/users", site.ID), gin.H{"name": "Eva"}); resp.StatusCode != 403 {
		t.Fatalf("auditor must not create users, got %d", resp.StatusCode)
	}
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	env := setupRouterTest(t)
	var site models.Site
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/sites", gin.H{"name": "Evora"}), &site)
	resp := env.call(t, env.super, http.MethodPost, "/api/v1/admin/tokens", gin.H{
		"operator": "ze",
		"site_id":  site.ID,
		"roles":    []string{"overlord"},
	})
	if resp.StatusCode != 422 {
		t.Fatalf("unknown role want 422 got %d", resp.StatusCode)
	}
}

func TestCreateUserWithoutTiers(t *testing.T) {
	env := setupRouterTest(t)
	var site models.Site
	decodeData(t, env.call(t, env.super, http.MethodPost, "/api/v1/admin/sites", gin.H{"name": "Braga"}), &site)
	resp := env.call(t, env.super, http.MethodPost, fmt.Sprintf("/api/v1/admin/sites/%d/users", site.ID), gin.H{"name": "Rui"})
	if resp.StatusCode != 422 {
		t.Fatalf("user without tier catalog want 422 got %d", resp.StatusCode)
	}
}
