package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/domain/ports/repository"
	"telegram-order-bot/internal/infra/i18n"
	"telegram-order-bot/internal/infra/logging"
	"telegram-order-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// ShippingCallbackPrefix prefixes inline button data for shipping choices.
const ShippingCallbackPrefix = "ship_"

const confirmLockTTL = 30 * time.Second

// OrderUseCase drives the LINK → PRICE → SHIPPING → CONTACT → CONFIRMATION
// conversation. Every Handle* method returns domain.ErrNoActiveOrder when the
// user is not at the step it serves.
type OrderUseCase interface {
	Start(ctx context.Context, tgID int64, username string) (adapter.Reply, error)
	CurrentStep(ctx context.Context, tgID int64) (model.Step, error)
	HandleLink(ctx context.Context, tgID int64, text string) (adapter.Reply, error)
	HandlePrice(ctx context.Context, tgID int64, text string) (adapter.Reply, error)
	HandleShipping(ctx context.Context, tgID int64, data string) (adapter.Reply, error)
	ShippingPrompt(ctx context.Context, tgID int64) (adapter.Reply, error)
	HandleContact(ctx context.Context, tgID int64, text string) (adapter.Reply, error)
	HandleConfirmation(ctx context.Context, tgID int64, text string) (adapter.Reply, error)
	Cancel(ctx context.Context, tgID int64) (adapter.Reply, error)
	Help() adapter.Reply
	Health() adapter.Reply
	IdleHint() adapter.Reply
}

// OrderOptions carries the tunables of the order flow.
type OrderOptions struct {
	ExchangeRate float64
	Catalog      *model.ShippingCatalog
	Now          func() time.Time
}

type orderUC struct {
	states  repository.StateRepository
	orders  repository.OrderRepository // nil when no database is configured
	tm      repository.TransactionManager
	locker  repository.Locker
	notifUC NotificationUseCase
	tr      *i18n.Translator
	rate    float64
	catalog *model.ShippingCatalog
	now     func() time.Time
	log     *zerolog.Logger
}

func NewOrderUseCase(
	states repository.StateRepository,
	orders repository.OrderRepository,
	tm repository.TransactionManager,
	locker repository.Locker,
	notifUC NotificationUseCase,
	tr *i18n.Translator,
	opts OrderOptions,
	logger *zerolog.Logger,
) *orderUC {
	if opts.Catalog == nil {
		opts.Catalog = model.MustDefaultCatalog()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &orderUC{
		states:  states,
		orders:  orders,
		tm:      tm,
		locker:  locker,
		notifUC: notifUC,
		tr:      tr,
		rate:    opts.ExchangeRate,
		catalog: opts.Catalog,
		now:     opts.Now,
		log:     logger,
	}
}

func (u *orderUC) Start(ctx context.Context, tgID int64, username string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Start")()

	order, err := model.NewOrder(tgID, username)
	if err != nil {
		return adapter.Reply{}, err
	}
	order.CreatedAt = u.now()
	if err := u.states.SetState(ctx, tgID, &repository.ConversationState{Step: model.StepLink, Order: order}); err != nil {
		return adapter.Reply{}, fmt.Errorf("save state: %w", err)
	}
	u.log.Info().Int64("tg_id", tgID).Str("order_id", order.ID).Msg("order conversation started")
	return adapter.Reply{Text: u.tr.T("start"), RemoveKeyboard: true}, nil
}

func (u *orderUC) CurrentStep(ctx context.Context, tgID int64) (model.Step, error) {
	st, err := u.states.GetState(ctx, tgID)
	if err != nil {
		return model.StepIdle, err
	}
	if st == nil || st.Order == nil {
		return model.StepIdle, nil
	}
	return st.Step, nil
}

// load returns the state only if the user is at step.
func (u *orderUC) load(ctx context.Context, tgID int64, step model.Step) (*repository.ConversationState, error) {
	st, err := u.states.GetState(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st == nil || st.Order == nil || st.Step != step {
		return nil, domain.ErrNoActiveOrder
	}
	return st, nil
}

func (u *orderUC) advance(ctx context.Context, tgID int64, st *repository.ConversationState, next model.Step) error {
	st.Step = next
	if err := u.states.SetState(ctx, tgID, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (u *orderUC) HandleLink(ctx context.Context, tgID int64, text string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.HandleLink")()

	st, err := u.load(ctx, tgID, model.StepLink)
	if err != nil {
		return adapter.Reply{}, err
	}
	link, err := model.ParseLink(text)
	if err != nil {
		return adapter.Reply{Text: u.tr.T("link_invalid")}, nil
	}
	st.Order.Link = link
	if err := u.advance(ctx, tgID, st, model.StepPrice); err != nil {
		return adapter.Reply{}, err
	}
	return adapter.Reply{Text: u.tr.T("ask_price")}, nil
}

func (u *orderUC) HandlePrice(ctx context.Context, tgID int64, text string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.HandlePrice")()

	st, err := u.load(ctx, tgID, model.StepPrice)
	if err != nil {
		return adapter.Reply{}, err
	}
	price, err := model.ParsePrice(text)
	if err != nil {
		return adapter.Reply{Text: u.tr.T("price_invalid")}, nil
	}
	st.Order.PriceCNY = price
	st.Order.ExchangeRate = u.rate
	if err := u.advance(ctx, tgID, st, model.StepShipping); err != nil {
		return adapter.Reply{}, err
	}
	return adapter.Reply{
		Text:    u.tr.T("price_converted", price, st.Order.PriceRUB(), u.rate),
		Buttons: u.shippingButtons(),
	}, nil
}

func (u *orderUC) HandleShipping(ctx context.Context, tgID int64, data string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.HandleShipping")()

	st, err := u.load(ctx, tgID, model.StepShipping)
	if err != nil {
		return adapter.Reply{}, err
	}
	code := strings.TrimPrefix(strings.TrimSpace(data), ShippingCallbackPrefix)
	opt, err := u.catalog.Lookup(model.ShippingMethod(code))
	if err != nil {
		return adapter.Reply{Text: u.tr.T("shipping_invalid"), Buttons: u.shippingButtons()}, nil
	}
	st.Order.ShippingMethod = opt.Code
	if err := u.advance(ctx, tgID, st, model.StepContact); err != nil {
		return adapter.Reply{}, err
	}
	return adapter.Reply{Text: u.tr.T("ask_contact")}, nil
}

// ShippingPrompt re-sends the shipping keyboard to a user who typed text instead of pressing a button.
func (u *orderUC) ShippingPrompt(ctx context.Context, tgID int64) (adapter.Reply, error) {
	if _, err := u.load(ctx, tgID, model.StepShipping); err != nil {
		return adapter.Reply{}, err
	}
	return adapter.Reply{Text: u.tr.T("shipping_use_buttons"), Buttons: u.shippingButtons()}, nil
}

func (u *orderUC) HandleContact(ctx context.Context, tgID int64, text string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.HandleContact")()

	st, err := u.load(ctx, tgID, model.StepContact)
	if err != nil {
		return adapter.Reply{}, err
	}
	contact, err := model.ParseContact(text)
	if err != nil {
		return adapter.Reply{Text: u.tr.T("contact_invalid")}, nil
	}
	st.Order.Contact = contact
	if err := u.advance(ctx, tgID, st, model.StepConfirmation); err != nil {
		return adapter.Reply{}, err
	}
	return adapter.Reply{
		Text:     u.summary(st.Order),
		Keyboard: [][]string{{u.tr.T("answer_yes"), u.tr.T("answer_no")}},
	}, nil
}

func (u *orderUC) HandleConfirmation(ctx context.Context, tgID int64, text string) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.HandleConfirmation")()

	answer := strings.ToLower(strings.TrimSpace(text))
	yes, no := u.tr.T("answer_yes"), u.tr.T("answer_no")
	if answer != yes && answer != no {
		if _, err := u.load(ctx, tgID, model.StepConfirmation); err != nil {
			return adapter.Reply{}, err
		}
		return adapter.Reply{
			Text:     u.tr.T("confirm_invalid"),
			Keyboard: [][]string{{yes, no}},
		}, nil
	}

	lockKey := fmt.Sprintf("order_confirm:%d", tgID)
	token, err := u.locker.TryLock(ctx, lockKey, confirmLockTTL)
	if err != nil {
		return adapter.Reply{}, err
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			u.log.Warn().Err(err).Str("key", lockKey).Msg("failed to release confirm lock")
		}
	}()

	// Re-read under the lock: a duplicate "да" that waited for it finds no state.
	st, err := u.load(ctx, tgID, model.StepConfirmation)
	if err != nil {
		return adapter.Reply{}, err
	}
	order := st.Order

	if answer == no {
		if err := order.Cancel(); err != nil {
			return adapter.Reply{}, fmt.Errorf("decline order %s: %w", order.ID, err)
		}
		if err := u.persist(ctx, order); err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to store cancelled order")
		}
		if err := u.states.ClearState(ctx, tgID); err != nil {
			return adapter.Reply{}, fmt.Errorf("clear state: %w", err)
		}
		metrics.IncOrderCancelled()
		u.log.Info().Int64("tg_id", tgID).Str("order_id", order.ID).Msg("order declined")
		return adapter.Reply{Text: u.tr.T("declined"), RemoveKeyboard: true}, nil
	}

	if err := order.Confirm(u.now()); err != nil {
		return adapter.Reply{}, err
	}
	if err := u.persist(ctx, order); err != nil {
		return adapter.Reply{}, fmt.Errorf("store order: %w", err)
	}
	if err := u.states.ClearState(ctx, tgID); err != nil {
		return adapter.Reply{}, fmt.Errorf("clear state: %w", err)
	}
	metrics.IncOrderConfirmed(string(order.ShippingMethod), order.PriceRUB())

	if u.notifUC != nil {
		if err := u.notifUC.OrderConfirmed(ctx, order); err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to schedule admin notification")
		}
	}

	u.log.Info().
		Int64("tg_id", tgID).
		Str("order_id", order.ID).
		Str("shipping", string(order.ShippingMethod)).
		Float64("price_rub", order.PriceRUB()).
		Msg("order confirmed")
	return adapter.Reply{Text: u.tr.T("confirmed", order.ID), RemoveKeyboard: true}, nil
}

func (u *orderUC) persist(ctx context.Context, order *model.Order) error {
	if u.orders == nil {
		return nil
	}
	if u.tm == nil {
		return u.orders.Save(ctx, repository.NoTX, order)
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		return u.orders.Save(ctx, tx, order)
	})
}

func (u *orderUC) Cancel(ctx context.Context, tgID int64) (adapter.Reply, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Cancel")()

	st, err := u.states.GetState(ctx, tgID)
	if err != nil {
		return adapter.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		return adapter.Reply{Text: u.tr.T("nothing_to_cancel"), RemoveKeyboard: true}, nil
	}
	if err := u.states.ClearState(ctx, tgID); err != nil {
		return adapter.Reply{}, fmt.Errorf("clear state: %w", err)
	}
	metrics.IncOrderCancelled()
	return adapter.Reply{Text: u.tr.T("cancelled"), RemoveKeyboard: true}, nil
}

func (u *orderUC) Help() adapter.Reply     { return adapter.Reply{Text: u.tr.T("help")} }
func (u *orderUC) Health() adapter.Reply   { return adapter.Reply{Text: u.tr.T("healthy")} }
func (u *orderUC) IdleHint() adapter.Reply { return adapter.Reply{Text: u.tr.T("idle_hint")} }

func (u *orderUC) priceLabel(o model.ShippingOption) string {
	if o.IsFree() {
		return u.tr.T("shipping_free")
	}
	return u.tr.T("shipping_per_kg", o.PricePerKg)
}

func (u *orderUC) shippingButtons() [][]adapter.InlineButton {
	opts := u.catalog.Options()
	rows := make([][]adapter.InlineButton, 0, len(opts))
	for _, o := range opts {
		label := o.Name
		if !o.IsFree() {
			label += " · " + u.priceLabel(o)
		}
		rows = append(rows, []adapter.InlineButton{{
			Text: u.tr.T("shipping_button", label, o.Days),
			Data: ShippingCallbackPrefix + string(o.Code),
		}})
	}
	return rows
}

func (u *orderUC) summary(o *model.Order) string {
	opt, err := u.catalog.Lookup(o.ShippingMethod)
	if err != nil {
		opt = model.ShippingOption{Code: o.ShippingMethod, Name: string(o.ShippingMethod)}
	}
	return u.tr.T("summary", o.Link, o.PriceCNY, o.PriceRUB(), opt.Name, opt.Days, u.priceLabel(opt), o.Contact)
}

// IsNoActiveOrder reports whether err means the user is not at the expected step.
func IsNoActiveOrder(err error) bool { return errors.Is(err, domain.ErrNoActiveOrder) }
