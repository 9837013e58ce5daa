package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-order-bot/internal/infra/metrics"
)

// Sweeper drops expired entries and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StateSweeper keeps the in-memory conversation store from growing with
// abandoned orders. Redis expires keys on its own and needs no sweeper.
type StateSweeper struct {
	interval time.Duration
	store    Sweeper
	extra    map[string]Sweeper
	log      *zerolog.Logger
}

func NewStateSweeper(interval time.Duration, store Sweeper, logger *zerolog.Logger) *StateSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "StateSweeper").Logger()
	return &StateSweeper{interval: interval, store: store, extra: map[string]Sweeper{}, log: &l}
}

// Also sweeps another in-memory store on the same tick, such as the rate
// limiter buckets. Its removals are logged but not counted as expired states.
func (w *StateSweeper) Also(name string, s Sweeper) *StateSweeper {
	if s != nil {
		w.extra[name] = s
	}
	return w
}

// Run blocks until ctx is cancelled.
func (w *StateSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting state sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping state sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *StateSweeper) runOnce(ctx context.Context) int {
	for name, s := range w.extra {
		n, err := s.Sweep(ctx)
		if err != nil {
			w.log.Error().Err(err).Str("store", name).Msg("sweep failed")
			continue
		}
		if n > 0 {
			w.log.Debug().Int("count", n).Str("store", name).Msg("idle entries removed")
		}
	}

	n, err := w.store.Sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("state sweep failed")
		return 0
	}
	if n > 0 {
		metrics.AddStatesExpired(n)
		w.log.Debug().Int("count", n).Msg("expired conversation states removed")
	}
	return n
}
