//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/repository"
	"telegram-order-bot/internal/usecase"
)

func TestStatsUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("should report not found without a database", func(t *testing.T) {
		uc := usecase.NewStatsUseCase(nil, nil, 13, newTestLogger())
		if _, err := uc.RecentOrders(ctx, "", 10); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("wanted ErrNotFound, got %v", err)
		}
		if _, err := uc.Totals(ctx); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("wanted ErrNotFound, got %v", err)
		}
		if len(uc.Shipping()) != 3 || uc.ExchangeRate() != 13 {
			t.Error("catalog and rate should still be served")
		}
	})

	t.Run("should default status and clamp limit", func(t *testing.T) {
		repo := NewMockOrderRepo()
		var gotStatus model.OrderStatus
		var gotLimit int
		repo.ListRecentFunc = func(_ context.Context, _ repository.Tx, st model.OrderStatus, limit int) ([]*model.Order, error) {
			gotStatus, gotLimit = st, limit
			return nil, nil
		}
		uc := usecase.NewStatsUseCase(repo, nil, 13, newTestLogger())

		if _, err := uc.RecentOrders(ctx, "", 100000); err != nil {
			t.Fatalf("RecentOrders failed: %v", err)
		}
		if gotStatus != model.OrderStatusConfirmed || gotLimit != 20 {
			t.Errorf("wanted confirmed/20, got %s/%d", gotStatus, gotLimit)
		}
	})

	t.Run("should count orders by status", func(t *testing.T) {
		repo := NewMockOrderRepo()
		for i, st := range []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusConfirmed, model.OrderStatusCancelled} {
			o, _ := model.NewOrder(int64(i+1), "")
			o.Status = st
			o.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
			_ = repo.Save(ctx, nil, o)
		}
		uc := usecase.NewStatsUseCase(repo, nil, 13, newTestLogger())

		totals, err := uc.Totals(ctx)
		if err != nil {
			t.Fatalf("Totals failed: %v", err)
		}
		if totals[model.OrderStatusConfirmed] != 2 || totals[model.OrderStatusCancelled] != 1 {
			t.Errorf("unexpected totals: %v", totals)
		}

		recent, err := uc.RecentOrders(ctx, model.OrderStatusConfirmed, 1)
		if err != nil || len(recent) != 1 {
			t.Fatalf("RecentOrders: err=%v len=%d", err, len(recent))
		}
		if recent[0].UserID != 2 {
			t.Errorf("wanted newest confirmed order first, got user %d", recent[0].UserID)
		}
	})
}
