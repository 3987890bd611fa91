package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func TestKeyBySiteAndOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/close", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"
	c.Set(shared.ContextKeySiteID, uint(9))

	if key := KeyBySiteAndOperator(c); key != "9|1.2.3.4" {
		t.Fatalf("anonymous key want 9|1.2.3.4 got %s", key)
	}
	c.Set(shared.ContextKeyOperator, "Ana")
	if key := KeyBySiteAndOperator(c); key != "9|ana" {
		t.Fatalf("operator key want 9|ana got %s", key)
	}
}

func TestRateLimitMiddlewareFallsBackToLocal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(shared.ContextKeyOperator, c.GetHeader("X-Operator"))
		c.Next()
	})
	r.Use(RateLimitMiddleware(nil, RateLimitRule{Prefix: "t", WindowSeconds: 60, MaxRequests: 2}, KeyBySiteAndOperator))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	call := func(operator string) string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Operator", operator)
		r.ServeHTTP(w, req)
		return w.Body.String()
	}
	for i := 0; i < 2; i++ {
		if body := call("ana"); !strings.Contains(body, `"ok":true`) {
			t.Fatalf("request %d should pass, got %s", i, body)
		}
	}
	if body := call("ana"); !strings.Contains(body, `"status_code":429`) {
		t.Fatalf("third request should be limited, got %s", body)
	}
	if body := call("rui"); !strings.Contains(body, `"ok":true`) {
		t.Fatalf("other operator should have its own bucket, got %s", body)
	}
}

func TestRateLimitMiddlewareDisabledRule(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{}, nil))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass with disabled rule", i)
		}
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("want (%d,%v) got (%d,%v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}
