package usecase

import (
	"context"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/repository"
	"telegram-order-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

const maxRecentOrders = 200

// StatsUseCase backs the admin API.
type StatsUseCase interface {
	RecentOrders(ctx context.Context, status model.OrderStatus, limit int) ([]*model.Order, error)
	Totals(ctx context.Context) (map[model.OrderStatus]int, error)
	Shipping() []model.ShippingOption
	ExchangeRate() float64
}

type statsUC struct {
	orders  repository.OrderRepository // nil without a database
	catalog *model.ShippingCatalog
	rate    float64

	log *zerolog.Logger
}

func NewStatsUseCase(orders repository.OrderRepository, catalog *model.ShippingCatalog, rate float64, logger *zerolog.Logger) *statsUC {
	if catalog == nil {
		catalog = model.MustDefaultCatalog()
	}
	return &statsUC{orders: orders, catalog: catalog, rate: rate, log: logger}
}

// RecentOrders returns domain.ErrNotFound when orders are not persisted at all.
func (s *statsUC) RecentOrders(ctx context.Context, status model.OrderStatus, limit int) ([]*model.Order, error) {
	defer logging.TraceDuration(s.log, "StatsUC.RecentOrders")()

	if s.orders == nil {
		return nil, domain.ErrNotFound
	}
	if limit <= 0 || limit > maxRecentOrders {
		limit = 20
	}
	if status == "" {
		status = model.OrderStatusConfirmed
	}
	return s.orders.ListRecent(ctx, repository.NoTX, status, limit)
}

func (s *statsUC) Totals(ctx context.Context) (map[model.OrderStatus]int, error) {
	if s.orders == nil {
		return nil, domain.ErrNotFound
	}
	out := make(map[model.OrderStatus]int, 2)
	for _, st := range []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusCancelled} {
		n, err := s.orders.CountByStatus(ctx, repository.NoTX, st)
		if err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, nil
}

func (s *statsUC) Shipping() []model.ShippingOption { return s.catalog.Options() }

func (s *statsUC) ExchangeRate() float64 { return s.rate }
