package memory

import (
	"context"
	"sync"
	"time"

	"telegram-order-bot/internal/domain"
	"telegram-order-bot/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.Locker = (*Locker)(nil)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// Locker mirrors the redis SETNX locker inside one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]heldLock), now: time.Now}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.locks[key]; ok && now.Before(h.expiresAt) {
		return "", domain.ErrConcurrentUpdate
	}
	token := uuid.NewString()
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.locks[key]; ok && h.token == token {
		delete(l.locks, key)
	}
	return nil
}
