package model

import (
	"strconv"
	"time"

	"telegram-order-bot/internal/domain"

	"github.com/oklog/ulid/v2"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a purchase request collected from a Telegram user.
// ExchangeRate is captured when the price is entered so later rate changes
// do not alter an order that is already being confirmed.
type Order struct {
	ID             string         `json:"id"`
	UserID         int64          `json:"user_id"`
	Username       string         `json:"username"`
	Link           string         `json:"link,omitempty"`
	PriceCNY       float64        `json:"price_cny,omitempty"`
	ExchangeRate   float64        `json:"exchange_rate,omitempty"`
	ShippingMethod ShippingMethod `json:"shipping_method,omitempty"`
	Contact        string         `json:"contact,omitempty"`
	Status         OrderStatus    `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	ConfirmedAt    *time.Time     `json:"confirmed_at,omitempty"`
}

func NewOrder(userID int64, username string) (*Order, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Username:  username,
		Status:    OrderStatusDraft,
		CreatedAt: time.Now(),
	}, nil
}

// PriceRUB converts the CNY price with the captured rate. Zero when unset.
func (o *Order) PriceRUB() float64 {
	if o == nil || o.PriceCNY <= 0 {
		return 0
	}
	return o.PriceCNY * o.ExchangeRate
}

// DisplayName is what the admin sees as the customer name.
func (o *Order) DisplayName() string {
	if o.Username != "" {
		return o.Username
	}
	return "id" + strconv.FormatInt(o.UserID, 10)
}

// Complete reports whether every field required for confirmation is set.
func (o *Order) Complete() bool {
	return o != nil && o.Link != "" && o.PriceCNY > 0 && o.ExchangeRate > 0 &&
		o.ShippingMethod != "" && o.Contact != ""
}

func (o *Order) Confirm(now time.Time) error {
	if o.Status != OrderStatusDraft {
		return domain.ErrOrderNotDraft
	}
	if !o.Complete() {
		return domain.ErrInvalidArgument
	}
	o.Status = OrderStatusConfirmed
	o.ConfirmedAt = &now
	return nil
}

func (o *Order) Cancel() error {
	if o.Status != OrderStatusDraft {
		return domain.ErrOrderNotDraft
	}
	o.Status = OrderStatusCancelled
	return nil
}
