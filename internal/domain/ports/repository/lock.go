package repository

import (
	"context"
	"time"
)

// Locker serializes work on a key across update workers (and across
// instances when backed by redis). TryLock returns domain.ErrConcurrentUpdate
// when the key stays held.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
