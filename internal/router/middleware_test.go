package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

func decodeStatusCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp.StatusCode
}

func TestResolveAllowedOrigin(t *testing.T) {
	if got := resolveAllowedOrigin("https://example.com", []string{"*"}, false); got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}
	if got := resolveAllowedOrigin("https://example.com", []string{"*"}, true); got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}
	if got := resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com"}, false); got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}
	if got := resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false); got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": c.GetString(shared.ContextKeyRequestID)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w2.Header().Get(requestIDHeader) == "" {
		t.Fatalf("generated request id should not be empty")
	}
}

func newScopedEngine(tokens *service.OperatorTokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/sites/:site_id")
	group.Use(OperatorAuthMiddleware(tokens), SiteScopeMiddleware())
	group.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0, "site_id": shared.SiteID(c)})
	})
	return r
}

func TestOperatorAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	tokens := service.NewOperatorTokenService(config.JWTConfig{SecretKey: "secret"})
	w := httptest.NewRecorder()
	newScopedEngine(tokens).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sites/1/ping", nil))
	if code := decodeStatusCode(t, w); code != 401 {
		t.Fatalf("status_code want 401 got %d", code)
	}
}

func TestSiteScopeMiddleware(t *testing.T) {
	tokens := service.NewOperatorTokenService(config.JWTConfig{SecretKey: "secret"})
	token, _, err := tokens.Issue("ana", 1)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	engine := newScopedEngine(tokens)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sites/1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)
	if code := decodeStatusCode(t, w); code != 0 {
		t.Fatalf("own site should pass, got %d", code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/sites/2/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)
	if code := decodeStatusCode(t, w); code != 403 {
		t.Fatalf("foreign site should be forbidden, got %d", code)
	}
}
