package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"telegram-order-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// orderFlowPrefix namespaces the per-user order conversation keys.
const orderFlowPrefix = "order_flow:"

func orderFlowKey(tgID int64) string {
	return orderFlowPrefix + strconv.FormatInt(tgID, 10)
}

// StateRepo keeps each user's order conversation in Redis as JSON.
//
// Every SetState rewrites the key with a fresh TTL, so the timeout counts from
// the user's last answer rather than from /start: a slow but active buyer
// keeps the draft, an abandoned one expires STATE_TTL after going quiet.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateRepo(client RedisClient, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) SetState(ctx context.Context, tgID int64, state *repository.ConversationState) error {
	if state == nil {
		return s.ClearState(ctx, tgID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode order flow for %d: %w", tgID, err)
	}
	return s.client.Set(ctx, orderFlowKey(tgID), data, s.ttl)
}

// GetState returns nil, nil when the user has no order in progress.
func (s *StateRepo) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	data, err := s.client.Get(ctx, orderFlowKey(tgID))
	switch {
	case IsNil(err):
		return nil, nil
	case err != nil:
		return nil, err
	}

	var state repository.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode order flow for %d: %w", tgID, err)
	}
	if !state.Step.Valid() {
		return nil, fmt.Errorf("decode order flow for %d: unknown step %q", tgID, state.Step)
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, tgID int64) error {
	return s.client.Del(ctx, orderFlowKey(tgID))
}
