//go:build !integration

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/infra/api/apiv1"
	"telegram-order-bot/internal/infra/metrics"
	"telegram-order-bot/internal/infra/web"
	"telegram-order-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{Port: 0, RequestTimeout: time.Second, ShutdownGrace: time.Second}
}

func serve(h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(testConfig(), Deps{}, newTestLogger())
	rec := serve(s.Handler(), http.MethodGet, HealthPath, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["status"] != "ok" {
		t.Fatalf("unexpected body %q (%v)", rec.Body.String(), err)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("should be ready when every check passes", func(t *testing.T) {
		s := NewServer(testConfig(), Deps{Checks: map[string]CheckFunc{
			"redis": func(context.Context) error { return nil },
		}}, newTestLogger())
		if rec := serve(s.Handler(), http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("should report the failing dependency", func(t *testing.T) {
		s := NewServer(testConfig(), Deps{Checks: map[string]CheckFunc{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		}}, newTestLogger())
		rec := serve(s.Handler(), http.MethodGet, "/readyz", nil)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("want 503, got %d", rec.Code)
		}
		var body readiness
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Checks["postgres"] != "connection refused" || body.Checks["redis"] != "ok" {
			t.Fatalf("unexpected checks %+v", body.Checks)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.MustRegister()
	metrics.SetBuildInfo("test", "abc123")
	s := NewServer(testConfig(), Deps{}, newTestLogger())
	rec := serve(s.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `build_info{commit="abc123"`) {
		t.Fatalf("build_info missing from /metrics output")
	}
}

func TestWebhookRoute(t *testing.T) {
	hits := 0
	hook := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits++ })

	t.Run("should not be mounted in polling mode", func(t *testing.T) {
		s := NewServer(testConfig(), Deps{}, newTestLogger())
		if rec := serve(s.Handler(), http.MethodPost, config.DefaultWebhookPath, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})

	t.Run("should only accept POST", func(t *testing.T) {
		s := NewServer(testConfig(), Deps{Webhook: hook}, newTestLogger())
		if rec := serve(s.Handler(), http.MethodGet, config.DefaultWebhookPath, nil); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("want 405, got %d", rec.Code)
		}
		if rec := serve(s.Handler(), http.MethodPost, config.DefaultWebhookPath, nil); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("should rate limit", func(t *testing.T) {
		cfg := testConfig()
		cfg.WebhookRPS, cfg.WebhookBurst = 0.001, 1
		s := NewServer(cfg, Deps{Webhook: hook, WebhookPath: "/hook"}, newTestLogger())

		serve(s.Handler(), http.MethodPost, "/hook", nil)
		if rec := serve(s.Handler(), http.MethodPost, "/hook", nil); rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", rec.Code)
		}
	})
}

func TestAdminAPI(t *testing.T) {
	stats := usecase.NewStatsUseCase(nil, model.MustDefaultCatalog(), 13, newTestLogger())
	admin := apiv1.NewServer(stats, newTestLogger())

	t.Run("should require a token", func(t *testing.T) {
		auth := web.NewAuthManager("secret", time.Minute)
		s := NewServer(testConfig(), Deps{Admin: admin, Auth: auth}, newTestLogger())

		if rec := serve(s.Handler(), http.MethodGet, "/api/v1/shipping", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
		tok, err := auth.Mint("test")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		rec := serve(s.Handler(), http.MethodGet, "/api/v1/shipping", map[string]string{"Authorization": "Bearer " + tok})
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("should not be mounted without a secret", func(t *testing.T) {
		s := NewServer(testConfig(), Deps{Admin: admin, Auth: web.NewAuthManager("", 0)}, newTestLogger())
		if rec := serve(s.Handler(), http.MethodGet, "/api/v1/shipping", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}

func TestServeAndShutdown(t *testing.T) {
	s := NewServer(testConfig(), Deps{}, newTestLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + HealthPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("serve returned %v", err)
	}
}
