package adapter

import (
	"context"

	"telegram-order-bot/internal/domain/model"
)

// OrderNotifier tells the shop administrator about a confirmed order.
type OrderNotifier interface {
	Name() string
	Notify(ctx context.Context, order *model.Order) error
}
