// Package memory holds single-process stand-ins for the redis-backed stores,
// used when REDIS_URL is not configured.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"telegram-order-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

type stateEntry struct {
	data      []byte
	expiresAt time.Time
}

// StateRepo stores conversation state in a map. Entries are serialized so
// callers never share pointers with the store.
type StateRepo struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]stateEntry
	now     func() time.Time
}

func NewStateRepo(ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &StateRepo{ttl: ttl, entries: make(map[int64]stateEntry), now: time.Now}
}

func (s *StateRepo) SetState(_ context.Context, tgID int64, state *repository.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[tgID] = stateEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *StateRepo) GetState(_ context.Context, tgID int64) (*repository.ConversationState, error) {
	s.mu.Lock()
	e, ok := s.entries[tgID]
	if ok && !s.now().Before(e.expiresAt) {
		delete(s.entries, tgID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var state repository.ConversationState
	if err := json.Unmarshal(e.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateRepo) ClearState(_ context.Context, tgID int64) error {
	s.mu.Lock()
	delete(s.entries, tgID)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *StateRepo) Sweep(_ context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len is the number of stored (possibly expired) conversations.
func (s *StateRepo) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
