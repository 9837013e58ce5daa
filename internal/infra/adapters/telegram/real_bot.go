package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/metrics"
	red "telegram-order-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// Sender is the part of *tgbotapi.BotAPI used to talk back to users.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router turns user input into replies (application.BotFacade).
type Router interface {
	HandleMessage(ctx context.Context, tgID int64, username, text string) (adapter.Reply, error)
	HandleCallback(ctx context.Context, tgID int64, data string) (adapter.Reply, error)
	RateLimited() adapter.Reply
}

// RateLimiter is implemented by the redis and in-memory limiters.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter receives updates (long polling or webhook), hands them
// to the Router on per-user ordered workers and renders the replies.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI // nil in tests
	api         Sender
	router      Router
	rateLimiter RateLimiter
	rateLimit   int
	dispatcher  *dispatcher
	log         *zerolog.Logger

	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter connects to the Bot API (it calls getMe).
func NewRealTelegramBotAdapter(cfg *config.BotConfig, router Router, rateLimiter RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	a, err := NewWithSender(bot, router, rateLimiter, cfg.Workers, cfg.RateLimitPerMin, logger)
	if err != nil {
		return nil, err
	}
	a.bot = bot
	a.log.Info().Str("bot", bot.Self.UserName).Msg("connected to Telegram")
	return a, nil
}

// NewWithSender builds the adapter around any Sender.
func NewWithSender(api Sender, router Router, rateLimiter RateLimiter, workers, ratePerMin int, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if api == nil {
		return nil, errors.New("telegram sender is nil")
	}
	if router == nil {
		return nil, errors.New("router is nil")
	}
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	a := &RealTelegramBotAdapter{
		api:         api,
		router:      router,
		rateLimiter: rateLimiter,
		rateLimit:   ratePerMin,
		log:         &l,
	}
	a.dispatcher = newDispatcher(workers, 64, a.process)
	return a, nil
}

// StartWorkers starts the update workers. Webhook mode calls it directly;
// StartPolling calls it itself. Cancelling ctx stops intake; updates already
// queued are still handled before Wait returns.
func (r *RealTelegramBotAdapter) StartWorkers(ctx context.Context) {
	r.dispatcher.Start(ctx)
}

// Wait blocks until every update worker has exited.
func (r *RealTelegramBotAdapter) Wait() { r.dispatcher.Wait() }

// StartPolling long-polls Telegram until ctx is cancelled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.bot == nil {
		return errors.New("polling requires a Bot API client")
	}
	// A webhook left over from a previous deployment blocks getUpdates.
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("failed to delete webhook before polling")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	r.StartWorkers(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	r.log.Info().Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			r.dispatcher.Wait()
			return nil
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			if err := r.dispatcher.Dispatch(ctx, up); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrDispatcherClosed) {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("dropping update")
			}
		}
	}
}

// StopPolling stops the polling loop gracefully.
func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SetCommands publishes the command menu shown by Telegram clients.
func (r *RealTelegramBotAdapter) SetCommands(ctx context.Context) error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Начать новый расчет"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Отменить текущий запрос"},
		tgbotapi.BotCommand{Command: "help", Description: "Показать помощь"},
	)
	_, err := r.api.Request(cfg)
	return err
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	return r.SendReply(ctx, tgID, adapter.Reply{Text: text})
}

func (r *RealTelegramBotAdapter) SendReply(ctx context.Context, tgID int64, reply adapter.Reply) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if strings.TrimSpace(reply.Text) == "" {
		return nil
	}
	_, err := r.api.Send(renderReply(tgID, reply))
	return err
}

// process runs on a dispatcher worker.
func (r *RealTelegramBotAdapter) process(ctx context.Context, up tgbotapi.Update) {
	userID := updateUserID(up)
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithTgID(ctx, userID)
	log := logging.With(ctx, r.log)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int("update_id", up.UpdateID).Msg("update handler panicked")
		}
	}()

	if err := r.handleUpdate(ctx, up); err != nil {
		log.Error().Err(err).Int("update_id", up.UpdateID).Msg("failed to handle update")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// ----- Inline button callbacks -----
	if update.CallbackQuery != nil {
		metrics.IncTelegramUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	// ----- Regular messages -----
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		metrics.IncTelegramUpdate("other")
		return nil
	}
	metrics.IncTelegramUpdate("message")
	msg := update.Message
	if msg.Text == "" {
		return nil
	}

	if !r.allow(ctx, msg.From.ID) {
		return r.SendReply(ctx, msg.Chat.ID, r.router.RateLimited())
	}

	reply, err := r.router.HandleMessage(ctx, msg.From.ID, msg.From.UserName, msg.Text)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("message handling failed")
	}
	return r.SendReply(ctx, msg.Chat.ID, reply)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop telegram spinner when we return
	defer func() { _, _ = r.api.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}

	if !r.allow(ctx, query.From.ID) {
		return r.SendReply(ctx, chatID, r.router.RateLimited())
	}

	reply, err := r.router.HandleCallback(ctx, query.From.ID, query.Data)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Str("data", query.Data).Msg("callback handling failed")
	}
	return r.SendReply(ctx, chatID, reply)
}

// allow fails open: a broken limiter must not take the bot down.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64) bool {
	if r.rateLimiter == nil || r.rateLimit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, "msg"), r.rateLimit, time.Minute)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}
