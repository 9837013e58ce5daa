package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-order-bot/internal/application"
	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/domain/ports/repository"
	"telegram-order-bot/internal/infra/adapters/notifier"
	tele "telegram-order-bot/internal/infra/adapters/telegram"
	"telegram-order-bot/internal/infra/api/apiv1"
	pg "telegram-order-bot/internal/infra/db/postgres"
	httpapi "telegram-order-bot/internal/infra/http"
	"telegram-order-bot/internal/infra/i18n"
	"telegram-order-bot/internal/infra/memory"
	"telegram-order-bot/internal/infra/metrics"
	red "telegram-order-bot/internal/infra/redis"
	"telegram-order-bot/internal/infra/sched"
	"telegram-order-bot/internal/infra/security"
	"telegram-order-bot/internal/infra/web"
	"telegram-order-bot/internal/infra/worker"
	"telegram-order-bot/internal/manifest"
	"telegram-order-bot/internal/usecase"
)

type options struct {
	manifest string
}

// stores groups the backends chosen from the configuration.
type stores struct {
	states  repository.StateRepository
	locker  repository.Locker
	limiter tele.RateLimiter
	orders  repository.OrderRepository
	tm      repository.TransactionManager
	sweeper sched.Sweeper // nil when redis expires state itself
	buckets sched.Sweeper // in-memory rate limiter, swept with the states
	checks  map[string]httpapi.CheckFunc
	closers []func()
	pool    *pgxpool.Pool
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	if opts.manifest != "" {
		checkManifest(opts.manifest, logger)
	}
	if cfg.Bot.WebhookSecret == config.DefaultWebhookSecret {
		logger.Warn().Msg("WEBHOOK_SECRET is not set; using the built-in default")
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	tr := i18n.MustDefault()
	catalog := model.MustDefaultCatalog()

	// ---- Notifications ----
	var orderNotifier adapter.OrderNotifier
	if cfg.EmailConfigured() {
		orderNotifier = notifier.NewSMTPNotifier(cfg.Email, catalog, logger)
	} else {
		logger.Warn().Msg("SMTP credentials missing; admin e-mails are only logged")
		orderNotifier = notifier.NewLogNotifier(catalog, logger)
	}
	notifPool := worker.NewPool(2, 100, logger)
	notifPool.Start(ctx)
	// Runs after the bot has drained its updates, which may still confirm orders.
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		if err := notifPool.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("pending admin notifications were not delivered")
		}
	}()

	// ---- Use cases ----
	notifUC := usecase.NewNotificationUseCase(orderNotifier, notifPool, 0, logger)
	orderUC := usecase.NewOrderUseCase(st.states, st.orders, st.tm, st.locker, notifUC, tr, usecase.OrderOptions{
		ExchangeRate: cfg.Order.ExchangeRate,
		Catalog:      catalog,
	}, logger)
	statsUC := usecase.NewStatsUseCase(st.orders, catalog, cfg.Order.ExchangeRate, logger)

	// ---- Telegram ----
	facade := application.NewBotFacade(orderUC, tr, logger)
	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, st.limiter, logger)
	if err != nil {
		return err
	}
	if err := bot.SetCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("setMyCommands failed")
	}

	mode := cfg.EffectiveMode()
	deps := httpapi.Deps{
		Checks: st.checks,
		Admin:  apiv1.NewServer(statsUC, logger),
		Auth:   web.NewAuthManager(cfg.Admin.APISecret, cfg.Admin.TokenTTL),
	}
	if mode == config.ModeWebhook {
		deps.Webhook = bot.WebhookHandler(cfg.Bot.WebhookSecret)
		deps.WebhookPath = cfg.Bot.WebhookPath
	}
	server := httpapi.NewServer(cfg.HTTP, deps, logger)

	if mode == config.ModeWebhook {
		if err := bot.RegisterWebhook(ctx, cfg.WebhookURL(), cfg.Bot.WebhookSecret); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		return server.Shutdown(sctx)
	})

	switch mode {
	case config.ModeWebhook:
		bot.StartWorkers(gctx)
		g.Go(func() error {
			<-gctx.Done()
			if !waitFor(bot.Wait, cfg.HTTP.ShutdownGrace) {
				logger.Warn().Msg("queued updates were still running when the grace period ended")
			}
			return nil
		})
	default:
		g.Go(func() error { return bot.StartPolling(gctx) })
	}

	if st.sweeper != nil {
		sweeper := sched.NewStateSweeper(time.Minute, st.sweeper, logger).
			Also("rate_limiter", st.buckets)
		g.Go(func() error {
			if err := sweeper.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if st.pool != nil {
		g.Go(func() error {
			pg.ReportPoolStats(gctx, st.pool, 15*time.Second, logger)
			return nil
		})
	}

	logger.Info().
		Str("mode", mode).
		Int("port", cfg.HTTP.Port).
		Bool("redis", cfg.Redis.URL != "").
		Bool("postgres", st.orders != nil).
		Str("notifier", orderNotifier.Name()).
		Msg("bot started")

	return g.Wait()
}

// waitFor reports whether wait returned within d.
func waitFor(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	st := &stores{checks: map[string]httpapi.CheckFunc{}}

	// ---- Redis or in-process state ----
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = rc.Close() })
		st.states = red.NewStateRepo(rc, cfg.Order.StateTTL)
		st.locker = red.NewLocker(rc)
		st.limiter = red.NewRateLimiter(rc)
		st.checks["redis"] = rc.Ping
	} else {
		mem := memory.NewStateRepo(cfg.Order.StateTTL)
		st.states = mem
		st.sweeper = mem
		st.locker = memory.NewLocker()
		limiter := memory.NewRateLimiter()
		st.limiter = limiter
		st.buckets = limiter
		if cfg.Runtime.Production {
			logger.Warn().Msg("REDIS_URL is not set; conversation state is lost on restart")
		}
	}

	// ---- Postgres (optional) ----
	if cfg.Database.URL == "" {
		return st, nil
	}
	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		st.close()
		return nil, err
	}
	st.pool = pool
	st.closers = append(st.closers, pool.Close)
	st.checks["postgres"] = pool.Ping

	var cipher pg.ContactCipher
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			st.close()
			return nil, err
		}
		cipher = enc
	}
	st.orders = pg.NewPostgresOrderRepo(pool, cipher)
	st.tm = pg.NewTxManager(pool)
	return st, nil
}

// checkManifest never stops the bot: it only surfaces drift between the
// blueprint and the running environment.
func checkManifest(path string, logger *zerolog.Logger) {
	m, err := manifest.Load(path)
	if err == nil {
		err = m.Validate()
	}
	if err != nil {
		logger.Error().Err(err).Str("manifest", path).Msg("deployment manifest has problems")
		return
	}
	service := os.Getenv("RENDER_SERVICE_NAME")
	if _, ok := m.Service(service); !ok && len(m.Services) > 0 {
		service = m.Services[0].Name
	}
	missing, err := m.CheckEnv(service, os.LookupEnv)
	if err != nil {
		logger.Warn().Err(err).Msg("manifest env check skipped")
		return
	}
	for _, k := range missing {
		logger.Warn().Str("key", k).Str("service", service).Msg("env var declared in manifest is not set")
	}
}
