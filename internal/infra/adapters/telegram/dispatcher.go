package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	// ErrBacklogFull is returned by TryDispatch when the user's shard is saturated.
	ErrBacklogFull = errors.New("update backlog full")
	// ErrDispatcherClosed is returned once intake has stopped.
	ErrDispatcherClosed = errors.New("update dispatcher closed")
)

type updateFunc func(ctx context.Context, update tgbotapi.Update)

// dispatcher fans updates out to a fixed set of workers. Updates of one user
// always land on the same worker, so they are handled in arrival order.
type dispatcher struct {
	shards  []chan tgbotapi.Update
	handle  updateFunc
	wg      sync.WaitGroup
	started sync.Once

	mu     sync.RWMutex
	closed bool
}

func newDispatcher(workers, backlog int, handle updateFunc) *dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if backlog <= 0 {
		backlog = 64
	}
	d := &dispatcher{shards: make([]chan tgbotapi.Update, workers), handle: handle}
	for i := range d.shards {
		d.shards[i] = make(chan tgbotapi.Update, backlog)
	}
	return d
}

// Start launches the workers once. When ctx is done intake stops and the
// workers finish the updates already queued before exiting; handlers get a
// context that ignores ctx's cancellation.
func (d *dispatcher) Start(ctx context.Context) {
	d.started.Do(func() {
		handleCtx := context.WithoutCancel(ctx)
		for _, ch := range d.shards {
			d.wg.Add(1)
			go func(ch <-chan tgbotapi.Update) {
				defer d.wg.Done()
				for up := range ch {
					d.handle(handleCtx, up)
				}
			}(ch)
		}
		go func() {
			<-ctx.Done()
			d.Close()
		}()
	})
}

// Close stops intake. Queued updates are still handled.
func (d *dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
}

// Wait blocks until every worker has drained its shard.
func (d *dispatcher) Wait() { d.wg.Wait() }

func (d *dispatcher) shardFor(up tgbotapi.Update) chan tgbotapi.Update {
	id := updateUserID(up)
	if id < 0 {
		id = -id
	}
	return d.shards[uint64(id)%uint64(len(d.shards))]
}

// Dispatch blocks until the update is queued or ctx ends.
func (d *dispatcher) Dispatch(ctx context.Context, up tgbotapi.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.shardFor(up) <- up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryDispatch never blocks.
func (d *dispatcher) TryDispatch(up tgbotapi.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.shardFor(up) <- up:
		return nil
	default:
		return ErrBacklogFull
	}
}

// updateUserID returns the Telegram user behind an update, or 0.
func updateUserID(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil && up.Message.From != nil:
		return up.Message.From.ID
	case up.CallbackQuery != nil && up.CallbackQuery.From != nil:
		return up.CallbackQuery.From.ID
	case up.Message != nil && up.Message.Chat != nil:
		return up.Message.Chat.ID
	}
	return 0
}
