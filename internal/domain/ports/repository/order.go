package repository

import (
	"context"

	"telegram-order-bot/internal/domain/model"
)

// OrderRepository persists confirmed and cancelled orders.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	ListRecent(ctx context.Context, tx Tx, status model.OrderStatus, limit int) ([]*model.Order, error)
	CountByStatus(ctx context.Context, tx Tx, status model.OrderStatus) (int, error)
}
