package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/infra/api"
	"telegram-order-bot/internal/infra/api/apiv1"
	"telegram-order-bot/internal/infra/metrics"
	"telegram-order-bot/internal/infra/web"
)

// HealthPath is the liveness path declared in render.yaml.
const HealthPath = "/healthz"

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Deps are the optional parts of the router. Nil fields are not mounted.
type Deps struct {
	Webhook     http.Handler
	WebhookPath string
	Checks      map[string]CheckFunc
	Admin       *apiv1.Server
	Auth        *web.AuthManager
}

type Server struct {
	cfg    config.HTTPConfig
	deps   Deps
	log    *zerolog.Logger
	router chi.Router
	server *http.Server
}

func NewServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{cfg: cfg, deps: deps, log: &l}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(api.TraceID(), api.RequestLog(s.log), api.Recover(s.log))

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.ready)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	if s.deps.Webhook != nil {
		path := s.deps.WebhookPath
		if path == "" {
			path = config.DefaultWebhookPath
		}
		var lim *rate.Limiter
		if s.cfg.WebhookRPS > 0 {
			burst := s.cfg.WebhookBurst
			if burst <= 0 {
				burst = int(s.cfg.WebhookRPS) + 1
			}
			lim = rate.NewLimiter(rate.Limit(s.cfg.WebhookRPS), burst)
		}
		r.With(api.RateLimit(lim, s.log)).Method(http.MethodPost, path, s.deps.Webhook)
	}

	if s.deps.Admin != nil && s.deps.Auth.Enabled() {
		r.Group(func(r chi.Router) {
			r.Use(api.Timeout(s.cfg.RequestTimeout), s.deps.Auth.Middleware(s.log))
			apiv1.RegisterAPIV1(r, s.deps.Admin)
		})
	}
	return r
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ready runs every check concurrently with a shared deadline.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	res := readiness{Status: "ok", Checks: make(map[string]string, len(names))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			res.Checks[name] = status
			mu.Unlock()
		}(name, s.deps.Checks[name])
	}
	wg.Wait()

	code := http.StatusOK
	for _, st := range res.Checks {
		if st != "ok" {
			res.Status = "unavailable"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, res)
}

// Start blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
