package api

import (
	"context"

	"choreboard/domain"
)

// Controller abstracts the per-board synchronization controller for handlers.
type Controller interface {
	Load(ctx context.Context) (domain.Board, error)
	Mutate(ctx context.Context, label string, undoable bool, fn func(domain.Board) (domain.Board, error)) (domain.Board, error)
	ReplaceBoard(ctx context.Context, b domain.Board) (domain.Board, error)
	Undo(ctx context.Context) (domain.Board, error)
	WeeklyRefresh(ctx context.Context) (domain.Board, error)
	ClearDone(ctx context.Context) (domain.Board, error)
}

// ControllerFunc resolves the controller for a board entry.
type ControllerFunc func(entryID string) Controller

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, entryID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails.
	Remove(ctx context.Context, entryID, key string) error
}
