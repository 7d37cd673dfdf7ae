package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collections-platform/internal/config"

	"github.com/gin-gonic/gin"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := m.IssuePair(now, "user-1", "collector")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}
	if !pair.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", pair.ExpiresAt)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "collector" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newManager(t)
	now := time.Now()
	p, err := m.IssuePair(now, "u", "analyst")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, now); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected token_type mismatch, got %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeRefresh, now); err != nil {
		t.Fatalf("refresh token should verify as refresh: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, "u", "admin")
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestVerifyRejectsForeignAudience(t *testing.T) {
	m := newManager(t)
	other, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "other", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Now()
	p, _ := other.IssuePair(now, "u", "admin")
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("expected audience error")
	}
}

func TestIssuePairRequiresIdentity(t *testing.T) {
	m := newManager(t)
	if _, err := m.IssuePair(time.Now(), "", "admin"); !errors.Is(err, ErrMissingClaim) {
		t.Fatalf("expected missing claim, got %v", err)
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	p, _ := m.IssuePair(time.Now(), "u-9", "analyst")

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		role, _ := Role(c.Request.Context())
		c.JSON(200, gin.H{"user_id": uid, "role": role})
	})

	for name, tc := range map[string]struct {
		header string
		code   int
	}{
		"missing": {"", 401},
		"garbage": {"Bearer nope", 401},
		"refresh": {"Bearer " + p.RefreshToken, 401},
		"access":  {"Bearer " + p.AccessToken, 200},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", name, tc.code, w.Code)
		}
	}
}
