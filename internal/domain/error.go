package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Order flow
	ErrInvalidLink      = errors.New("invalid product link")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrUnknownShipping  = errors.New("unknown shipping method")
	ErrInvalidContact   = errors.New("invalid contact")
	ErrNoActiveOrder    = errors.New("no order in progress")
	ErrOrderNotDraft    = errors.New("order is not a draft")
	ErrConcurrentUpdate = errors.New("another update for this user is in progress")
)
