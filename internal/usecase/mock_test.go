//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/model"
	"telegram-order-bot/internal/domain/ports/adapter"
	"telegram-order-bot/internal/domain/ports/repository"
	"telegram-order-bot/internal/infra/i18n"
	"telegram-order-bot/internal/infra/worker"
)

// =============================
// Repositories
// =============================

// ---- MockStateRepo ----

type MockStateRepo struct {
	mu     sync.Mutex
	states map[int64][]byte

	SetStateFunc   func(ctx context.Context, tgID int64, st *repository.ConversationState) error
	GetStateFunc   func(ctx context.Context, tgID int64) (*repository.ConversationState, error)
	ClearStateFunc func(ctx context.Context, tgID int64) error
}

var _ repository.StateRepository = (*MockStateRepo)(nil)

func NewMockStateRepo() *MockStateRepo {
	return &MockStateRepo{states: map[int64][]byte{}}
}

func (m *MockStateRepo) SetState(ctx context.Context, tgID int64, st *repository.ConversationState) error {
	if m.SetStateFunc != nil {
		return m.SetStateFunc(ctx, tgID, st)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[tgID] = b
	return nil
}

func (m *MockStateRepo) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(ctx, tgID)
	}
	m.mu.Lock()
	b, ok := m.states[tgID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var st repository.ConversationState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *MockStateRepo) ClearState(ctx context.Context, tgID int64) error {
	if m.ClearStateFunc != nil {
		return m.ClearStateFunc(ctx, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tgID)
	return nil
}

// ---- MockOrderRepo ----

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	saves  int

	SaveFunc          func(ctx context.Context, tx repository.Tx, o *model.Order) error
	ListRecentFunc    func(ctx context.Context, tx repository.Tx, status model.OrderStatus, limit int) ([]*model.Order, error)
	CountByStatusFunc func(ctx context.Context, tx repository.Tx, status model.OrderStatus) (int, error)
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	r.saves++
	return nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MockOrderRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.OrderStatus, limit int) ([]*model.Order, error) {
	if r.ListRecentFunc != nil {
		return r.ListRecentFunc(ctx, tx, status, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.Status == status {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockOrderRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus) (int, error) {
	if r.CountByStatusFunc != nil {
		return r.CountByStatusFunc(ctx, tx, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MockOrderRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// ---- MockTxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- MockLocker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrConcurrentUpdate
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// =============================
// Adapters
// =============================

// ---- MockNotifier ----

type MockNotifier struct {
	mu       sync.Mutex
	Notified []*model.Order

	NotifyFunc func(ctx context.Context, o *model.Order) error
}

var _ adapter.OrderNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) Name() string { return "mock" }

func (m *MockNotifier) Notify(ctx context.Context, o *model.Order) error {
	if m.NotifyFunc != nil {
		if err := m.NotifyFunc(ctx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, o)
	return nil
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notified)
}

// ---- MockNotificationUC ----

type MockNotificationUC struct {
	mu     sync.Mutex
	Orders []*model.Order

	OrderConfirmedFunc func(ctx context.Context, o *model.Order) error
}

func (m *MockNotificationUC) OrderConfirmed(ctx context.Context, o *model.Order) error {
	if m.OrderConfirmedFunc != nil {
		return m.OrderConfirmedFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, o)
	return nil
}

func (m *MockNotificationUC) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// ---- MockSubmitter ----

// MockSubmitter queues tasks so tests decide when they run.
type MockSubmitter struct {
	Tasks     []worker.Task
	SubmitErr error
}

func (m *MockSubmitter) Submit(task worker.Task) error {
	if m.SubmitErr != nil {
		return m.SubmitErr
	}
	m.Tasks = append(m.Tasks, task)
	return nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestTranslator uses the embedded production texts so tests see what users see.
func newTestTranslator() *i18n.Translator {
	return i18n.MustDefault()
}
