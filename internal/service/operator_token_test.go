package service

import (
	"errors"
	"testing"
	"time"

	"github.com/teamledger/internal/config"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	svc := NewOperatorTokenService(config.JWTConfig{SecretKey: "secret", ExpireHours: 1, Issuer: "teamledger"})
	token, expiresAt, err := svc.Issue("ana", 7)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry should be in the future")
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.Operator != "ana" || claims.SiteID != 7 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.CanAccessSite(7) || claims.CanAccessSite(8) {
		t.Fatalf("site scope not enforced")
	}
}

func TestOperatorTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	issuer := NewOperatorTokenService(config.JWTConfig{SecretKey: "one", ExpireHours: 1})
	token, _, err := issuer.Issue("ana", 0)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	other := NewOperatorTokenService(config.JWTConfig{SecretKey: "two"})
	if _, err := other.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	later := NewOperatorTokenService(config.JWTConfig{SecretKey: "one"})
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := later.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestOperatorTokenSuperScope(t *testing.T) {
	claims := &OperatorClaims{Operator: "root"}
	if !claims.CanAccessSite(42) {
		t.Fatalf("site 0 token should access any site")
	}
	if _, _, err := NewOperatorTokenService(config.JWTConfig{SecretKey: "x"}).Issue("  ", 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank operator should be rejected")
	}
}
