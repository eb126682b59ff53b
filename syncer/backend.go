// Package syncer owns the client side of board persistence: the per-entry
// synchronization controller with its optimistic-concurrency save loop, and
// the single-level undo ledger.
package syncer

import (
	"context"
	"errors"

	"choreboard/domain"
)

// Backend is the persistence collaborator the controller talks to. Its
// implementation is not under the controller's control and may be modified
// concurrently by other writers.
type Backend interface {
	// GetBoard fetches the current authoritative board including its
	// version token.
	GetBoard(ctx context.Context, entryID string) (domain.Board, error)

	// SaveBoard writes the board if expectedUpdatedAt still matches the
	// backend's current token, and returns the persisted board carrying a
	// fresh token. An empty expected token writes unconditionally. A stale
	// token fails with a ConflictError.
	SaveBoard(ctx context.Context, entryID string, b domain.Board, expectedUpdatedAt string) (domain.Board, error)

	// Snapshot is the read-only fallback source: the last board seen on this
	// path, with no version token. ok is false when nothing is cached.
	Snapshot(ctx context.Context, entryID string) (domain.Board, bool)

	// ForceSave is the non-conditional fallback write command, used only
	// when the conditional save path is unavailable.
	ForceSave(ctx context.Context, entryID string, b domain.Board) error
}

// ConflictError marks a save rejected because the expected version token was
// stale.
type ConflictError interface {
	error
	Conflict()
}

// IsConflict reports whether err carries the backend's conflict signal.
func IsConflict(err error) bool {
	var conflict ConflictError
	return errors.As(err, &conflict)
}

// UnavailableError marks a save that never reached the backend, as opposed to
// one the backend rejected.
type UnavailableError interface {
	error
	Unavailable()
}

// IsUnavailable reports whether err means the primary store could not be
// reached.
func IsUnavailable(err error) bool {
	var unavailable UnavailableError
	return errors.As(err, &unavailable)
}

// ErrSaveInProgress is returned when a mutation arrives while a save is
// outstanding.
var ErrSaveInProgress = errors.New("a save is already in progress")

// ErrNothingToUndo is returned when no undo snapshot is pending.
var ErrNothingToUndo = errors.New("nothing to undo")

// SaveConflictError is the fatal outcome of a save whose single recovery
// attempt also failed.
type SaveConflictError struct {
	cause error
}

func (e *SaveConflictError) Error() string {
	if e.cause == nil {
		return "board save conflicted twice"
	}
	return "board save conflicted twice: " + e.cause.Error()
}

func (e *SaveConflictError) Unwrap() error { return e.cause }
