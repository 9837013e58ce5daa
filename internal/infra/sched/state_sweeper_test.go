//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSweeper struct {
	calls atomic.Int32
	n     int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestStateSweeper_RunOnce(t *testing.T) {
	t.Run("should return the swept count", func(t *testing.T) {
		w := NewStateSweeper(time.Minute, &fakeSweeper{n: 3}, newTestLogger())
		if got := w.runOnce(context.Background()); got != 3 {
			t.Fatalf("want 3, got %d", got)
		}
	})

	t.Run("should swallow store errors", func(t *testing.T) {
		w := NewStateSweeper(time.Minute, &fakeSweeper{n: 5, err: errors.New("boom")}, newTestLogger())
		if got := w.runOnce(context.Background()); got != 0 {
			t.Fatalf("want 0, got %d", got)
		}
	})
}

func TestStateSweeper_Also(t *testing.T) {
	t.Run("should sweep extra stores without counting them as states", func(t *testing.T) {
		states := &fakeSweeper{n: 2}
		buckets := &fakeSweeper{n: 7}
		w := NewStateSweeper(time.Minute, states, newTestLogger()).Also("rate_limiter", buckets)

		if got := w.runOnce(context.Background()); got != 2 {
			t.Fatalf("want 2, got %d", got)
		}
		if buckets.calls.Load() != 1 {
			t.Fatalf("extra store should be swept once, got %d", buckets.calls.Load())
		}
	})

	t.Run("should keep sweeping states when an extra store fails", func(t *testing.T) {
		states := &fakeSweeper{n: 1}
		w := NewStateSweeper(time.Minute, states, newTestLogger()).
			Also("broken", &fakeSweeper{err: errors.New("boom")})
		if got := w.runOnce(context.Background()); got != 1 {
			t.Fatalf("want 1, got %d", got)
		}
	})
}

func TestStateSweeper_Run(t *testing.T) {
	store := &fakeSweeper{}
	w := NewStateSweeper(5*time.Millisecond, store, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if store.calls.Load() < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", store.calls.Load())
	}
}
