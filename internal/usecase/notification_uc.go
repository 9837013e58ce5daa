package usecase

import (
	"context"
	"errors"
	"time"

	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/metrics"
	"telegram-order-bot/internal/infra/worker"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase tells the shop administrator about confirmed orders.
// Delivery happens in the background; a failed e-mail never undoes a confirmation.
type NotificationUseCase interface {
	OrderConfirmed(ctx context.Context, order *model.Order) error
}

// TaskSubmitter is the part of worker.Pool the use case needs.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type notificationUC struct {
	notifier adapter.OrderNotifier
	pool     TaskSubmitter
	timeout  time.Duration
	log      *zerolog.Logger
}

// NewNotificationUseCase sends through pool when given, synchronously otherwise.
// timeout bounds one whole delivery including retries.
func NewNotificationUseCase(notifier adapter.OrderNotifier, pool TaskSubmitter, timeout time.Duration, logger *zerolog.Logger) *notificationUC {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &notificationUC{notifier: notifier, pool: pool, timeout: timeout, log: logger}
}

func (n *notificationUC) OrderConfirmed(ctx context.Context, order *model.Order) error {
	defer logging.TraceDuration(n.log, "NotificationUC.OrderConfirmed")()

	if order == nil {
		return errors.New("nil order")
	}
	// The task outlives the Telegram update that triggered it.
	snapshot := *order
	traceID := logging.TraceIDFrom(ctx)
	task := func(ctx context.Context) error {
		if traceID != "" {
			ctx = logging.WithTraceID(ctx, traceID)
		}
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return n.deliver(ctx, &snapshot)
	}

	if n.pool == nil {
		return task(context.WithoutCancel(ctx))
	}
	if err := n.pool.Submit(task); err != nil {
		metrics.IncOrderNotification("dropped")
		n.log.Error().Err(err).Str("order_id", order.ID).Msg("notification dropped")
		return err
	}
	return nil
}

func (n *notificationUC) deliver(ctx context.Context, order *model.Order) error {
	log := logging.With(ctx, n.log).With().Str("order_id", order.ID).Str("notifier", n.notifier.Name()).Logger()
	if err := n.notifier.Notify(ctx, order); err != nil {
		metrics.IncOrderNotification("failed")
		log.Error().Err(err).Msg("admin notification failed")
		return err
	}
	metrics.IncOrderNotification("sent")
	log.Info().Msg("admin notified about order")
	return nil
}
