package application

import (
	"context"
	"errors"
	"strings"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/infra/i18n"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/metrics"
	"telegram-order-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// Bot commands understood by the facade.
const (
	CmdStart   = "/start"
	CmdHelp    = "/help"
	CmdCancel  = "/cancel"
	CmdHealthz = "/healthz"
)

// BotFacade turns raw Telegram input into use case calls and always produces
// something to show the user. The Telegram adapter only renders the reply.
type BotFacade struct {
	OrderUC usecase.OrderUseCase
	tr      *i18n.Translator
	log     *zerolog.Logger
}

func NewBotFacade(orderUC usecase.OrderUseCase, tr *i18n.Translator, logger *zerolog.Logger) *BotFacade {
	l := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{OrderUC: orderUC, tr: tr, log: &l}
}

// ParseCommand extracts "/cmd" from text, dropping a "@botname" suffix.
// It returns "" for plain text.
func ParseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// HandleMessage routes a text message either to a command or to the step the
// user is at. The returned error is for logging only; the reply is always usable.
func (b *BotFacade) HandleMessage(ctx context.Context, tgID int64, username, text string) (adapter.Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleMessage")()

	if cmd := ParseCommand(text); cmd != "" {
		metrics.IncTelegramCommand(cmd)
		return b.handleCommand(ctx, tgID, username, cmd)
	}

	step, err := b.OrderUC.CurrentStep(ctx, tgID)
	if err != nil {
		return b.failure(err)
	}

	var reply adapter.Reply
	switch step {
	case model.StepLink:
		reply, err = b.OrderUC.HandleLink(ctx, tgID, text)
	case model.StepPrice:
		reply, err = b.OrderUC.HandlePrice(ctx, tgID, text)
	case model.StepShipping:
		reply, err = b.OrderUC.ShippingPrompt(ctx, tgID)
	case model.StepContact:
		reply, err = b.OrderUC.HandleContact(ctx, tgID, text)
	case model.StepConfirmation:
		reply, err = b.OrderUC.HandleConfirmation(ctx, tgID, text)
	default:
		return b.OrderUC.IdleHint(), nil
	}
	if err != nil {
		return b.failure(err)
	}
	return reply, nil
}

// HandleCallback handles inline button presses. An empty reply means there is
// nothing to send (for example a button from an outdated message).
func (b *BotFacade) HandleCallback(ctx context.Context, tgID int64, data string) (adapter.Reply, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleCallback")()

	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, usecase.ShippingCallbackPrefix) {
		return adapter.Reply{}, nil
	}
	reply, err := b.OrderUC.HandleShipping(ctx, tgID, data)
	if err != nil {
		if usecase.IsNoActiveOrder(err) {
			return adapter.Reply{}, nil
		}
		return b.failure(err)
	}
	return reply, nil
}

func (b *BotFacade) handleCommand(ctx context.Context, tgID int64, username, cmd string) (adapter.Reply, error) {
	switch cmd {
	case CmdStart:
		reply, err := b.OrderUC.Start(ctx, tgID, username)
		if err != nil {
			return b.failure(err)
		}
		return reply, nil
	case CmdCancel:
		reply, err := b.OrderUC.Cancel(ctx, tgID)
		if err != nil {
			return b.failure(err)
		}
		return reply, nil
	case CmdHealthz:
		return b.OrderUC.Health(), nil
	default:
		return b.OrderUC.Help(), nil
	}
}

func (b *BotFacade) failure(err error) (adapter.Reply, error) {
	switch {
	case usecase.IsNoActiveOrder(err):
		return b.OrderUC.IdleHint(), nil
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return adapter.Reply{Text: b.tr.T("busy")}, nil
	}
	return adapter.Reply{Text: b.tr.T("error")}, err
}

// RateLimited is the reply for users who exceed their message budget.
func (b *BotFacade) RateLimited() adapter.Reply {
	return adapter.Reply{Text: b.tr.T("rate_limited")}
}
