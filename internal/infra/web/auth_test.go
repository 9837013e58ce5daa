//go:build !integration

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestAuthMiddleware(t *testing.T) {
	dummyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	auth := NewAuthManager("test-admin-jwt-secret-please-change", time.Minute)
	protected := auth.Middleware(newTestLogger())(dummyHandler)

	do := func(hdr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("no credentials -> 401", func(t *testing.T) {
		if code := do(""); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("malformed header -> 401", func(t *testing.T) {
		if code := do("Token abc"); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("valid token -> 200", func(t *testing.T) {
		tok, err := auth.Mint("ops")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if code := do("Bearer " + tok); code != http.StatusOK {
			t.Fatalf("want 200, got %d", code)
		}
	})

	t.Run("token signed with another secret -> 401", func(t *testing.T) {
		other := NewAuthManager("another-secret", time.Minute)
		tok, _ := other.Mint("ops")
		if code := do("Bearer " + tok); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("expired token -> 401", func(t *testing.T) {
		old := NewAuthManager("test-admin-jwt-secret-please-change", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _ := old.Mint("ops")
		if code := do("Bearer " + tok); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("alg none is rejected", func(t *testing.T) {
		claims := AdminClaims{Role: adminRole, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if code := do("Bearer " + tok); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("disabled manager -> 403", func(t *testing.T) {
		h := NewAuthManager("", time.Minute).Middleware(newTestLogger())(dummyHandler)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})
}
