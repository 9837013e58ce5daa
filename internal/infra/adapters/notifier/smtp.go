package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"telegram-order-bot/internal/config"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/metrics"
)

var _ adapter.OrderNotifier = (*SMTPNotifier)(nil)

// SendFunc delivers one message. The default dials SMTP over implicit TLS.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPNotifier e-mails the shop admin (From and To are both the admin box).
type SMTPNotifier struct {
	cfg     config.EmailConfig
	catalog *model.ShippingCatalog
	send    SendFunc
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	log     *zerolog.Logger
}

func NewSMTPNotifier(cfg config.EmailConfig, catalog *model.ShippingCatalog, logger *zerolog.Logger) *SMTPNotifier {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "SMTPNotifier").Logger()
	n := &SMTPNotifier{
		cfg:     cfg,
		catalog: catalog,
		sleep:   sleepCtx,
		now:     time.Now,
		log:     &l,
	}
	n.send = n.dialAndSend
	return n
}

// WithSender swaps the transport; used by tests.
func (n *SMTPNotifier) WithSender(send SendFunc) *SMTPNotifier {
	n.send = send
	return n
}

func (n *SMTPNotifier) Name() string { return "smtp" }

// Notify tries cfg.Retries times, sleeping 2^attempt seconds between tries.
func (n *SMTPNotifier) Notify(ctx context.Context, order *model.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	msg, err := n.newMessage(order)
	if err != nil {
		return fmt.Errorf("build e-mail for order %s: %w", order.ID, err)
	}
	log := logging.With(ctx, n.log)

	for attempt := 0; attempt < n.cfg.Retries; attempt++ {
		metrics.IncNotificationAttempt()
		if err = n.send(ctx, msg); err == nil {
			return nil
		}
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Int("retries", n.cfg.Retries).
			Str("order_id", order.ID).
			Msg("email send failed")
		if attempt == n.cfg.Retries-1 {
			break
		}
		if serr := n.sleep(ctx, time.Duration(1<<attempt)*time.Second); serr != nil {
			return fmt.Errorf("send order %s: %w", order.ID, serr)
		}
	}
	return fmt.Errorf("send order %s after %d attempts: %w", order.ID, n.cfg.Retries, err)
}

// dialAndSend opens one SMTPS session per message.
func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	c, err := mail.NewClient(n.cfg.Server,
		mail.WithPort(n.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Address),
		mail.WithPassword(n.cfg.Password),
		mail.WithTimeout(n.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
