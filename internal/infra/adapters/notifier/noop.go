package notifier

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
)

var _ adapter.OrderNotifier = (*LogNotifier)(nil)

// LogNotifier writes the e-mail it would have sent to the log. Used in -dev
// mode when no SMTP credentials are configured.
type LogNotifier struct {
	catalog *model.ShippingCatalog
	log     *zerolog.Logger
}

func NewLogNotifier(catalog *model.ShippingCatalog, logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{catalog: catalog, log: &l}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, order *model.Order) error {
	n.log.Info().
		Str("subject", Subject(order)).
		Str("body", Body(order, n.catalog)).
		Msg("admin e-mail (not sent)")
	return nil
}
