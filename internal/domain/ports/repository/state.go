package repository

import (
	"context"

	"telegram-order-bot/internal/domain/model"
)

// ConversationState holds the user's progress in the order conversation.
type ConversationState struct {
	Step  model.Step   `json:"step"`
	Order *model.Order `json:"order,omitempty"`
}

// StateRepository is the port for managing a user's conversational state.
// GetState returns (nil, nil) when the user has no state or it has expired.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
