package syncer

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"choreboard/board"
	"choreboard/domain"
)

// Controller serializes all reads and writes for one board entry. It keeps
// the last board acknowledged by the backend as the merge base, applies
// mutations locally, and pushes each result through the conditional save
// path with a single merge-and-retry recovery on conflict.
type Controller struct {
	entryID string
	backend Backend
	logger  *log.Entry
	now     func() time.Time

	mu         sync.Mutex
	saving     bool
	loaded     bool
	board      domain.Board
	lastSynced domain.Board
	hasSynced  bool
	undo       *undoLedger
}

// NewController builds a controller for entryID. undoExpiry <= 0 selects the
// default.
func NewController(entryID string, backend Backend, logger *log.Logger, undoExpiry time.Duration) *Controller {
	return &Controller{
		entryID: entryID,
		backend: backend,
		logger:  logger.WithField("entry_id", entryID),
		now:     time.Now,
		undo:    newUndoLedger(undoExpiry),
	}
}

// EntryID returns the board entry this controller owns.
func (c *Controller) EntryID() string { return c.entryID }

// Load returns the current board, fetching it from the backend on first use.
// When the primary store is unreachable the cached snapshot serves as a
// read-only stand-in; it carries no version token, so the next save after a
// snapshot load is unconditional.
func (c *Controller) Load(ctx context.Context) (domain.Board, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.board, nil
	}
	if err := c.loadLocked(ctx); err != nil {
		return domain.Board{}, err
	}
	return c.board, nil
}

func (c *Controller) loadLocked(ctx context.Context) error {
	remote, err := c.backend.GetBoard(ctx, c.entryID)
	if err != nil {
		if !IsUnavailable(err) {
			return err
		}
		snap, ok := c.backend.Snapshot(ctx, c.entryID)
		if !ok {
			return err
		}
		c.logger.WithError(err).Warn("Primary store unreachable, serving cached snapshot")
		snap.UpdatedAt = ""
		remote = snap
	}
	c.board = board.Normalize(remote, c.now())
	c.board.UpdatedAt = remote.UpdatedAt
	c.lastSynced = c.board
	c.hasSynced = remote.UpdatedAt != ""
	c.loaded = true
	return nil
}

// Mutate applies fn to the current board, normalizes the result and saves it.
// When undoable is set, the pre-mutation board is recorded so the change can
// be reverted within the undo window. The in-memory board only advances when
// the save succeeds.
func (c *Controller) Mutate(ctx context.Context, label string, undoable bool, fn func(domain.Board) (domain.Board, error)) (domain.Board, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saving {
		return domain.Board{}, ErrSaveInProgress
	}
	if !c.loaded {
		if err := c.loadLocked(ctx); err != nil {
			return domain.Board{}, err
		}
	}
	before := c.board
	next, err := fn(c.board)
	if err != nil {
		return domain.Board{}, err
	}
	next = board.Normalize(next, c.now())
	if err := c.saveLocked(ctx, next); err != nil {
		return domain.Board{}, err
	}
	if undoable {
		c.undo.Record(before, label)
	}
	return c.board, nil
}

// ReplaceBoard saves b as the full board state, as used by imports and the
// whole-board PUT. The previous board is recorded for undo.
func (c *Controller) ReplaceBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	return c.Mutate(ctx, "replace_board", true, func(domain.Board) (domain.Board, error) {
		return b, nil
	})
}

// Undo restores the pending snapshot and saves it. The restored state is not
// itself undoable.
func (c *Controller) Undo(ctx context.Context) (domain.Board, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saving {
		return domain.Board{}, ErrSaveInProgress
	}
	snapshot, label, ok := c.undo.Take()
	if !ok {
		return domain.Board{}, ErrNothingToUndo
	}
	c.logger.WithField("label", label).Info("Undoing last change")
	restored := board.Normalize(snapshot, c.now())
	if err := c.saveLocked(ctx, restored); err != nil {
		return domain.Board{}, err
	}
	return c.board, nil
}

// WeeklyRefresh runs the weekly rollover for this board.
func (c *Controller) WeeklyRefresh(ctx context.Context) (domain.Board, error) {
	return c.Mutate(ctx, "weekly_refresh", false, func(b domain.Board) (domain.Board, error) {
		refreshed, created := board.WeeklyRefresh(b, c.now())
		c.logger.WithField("tasks_created", created).Info("Weekly refresh complete")
		return refreshed, nil
	})
}

// ClearDone removes everything from the done column.
func (c *Controller) ClearDone(ctx context.Context) (domain.Board, error) {
	return c.Mutate(ctx, "clear_done", true, func(b domain.Board) (domain.Board, error) {
		cleared, removed := board.RemoveDoneTasks(b)
		c.logger.WithField("tasks_removed", removed).Info("Cleared done column")
		return cleared, nil
	})
}

// saveLocked runs the save state machine for next. On success c.board and
// c.lastSynced track the persisted board. On failure of any shape c.board is
// left at its pre-save value.
func (c *Controller) saveLocked(ctx context.Context, next domain.Board) error {
	c.saving = true
	defer func() { c.saving = false }()

	expected := ""
	if c.hasSynced {
		expected = c.lastSynced.UpdatedAt
	}
	saved, err := c.backend.SaveBoard(ctx, c.entryID, next, expected)
	if err == nil {
		c.adopt(saved)
		return nil
	}
	if IsConflict(err) {
		return c.recoverConflict(ctx, next)
	}
	if IsUnavailable(err) {
		if forceErr := c.backend.ForceSave(ctx, c.entryID, next); forceErr != nil {
			c.logger.WithError(forceErr).Error("Fallback save failed")
			return err
		}
		c.logger.WithError(err).Warn("Primary store unreachable, board queued through fallback path")
		next.UpdatedAt = ""
		c.board = next
		c.lastSynced = next
		c.hasSynced = false
		c.loaded = true
		return nil
	}
	return err
}

// recoverConflict merges next over the freshly fetched remote board using the
// last synced board as the base, then retries the save exactly once.
func (c *Controller) recoverConflict(ctx context.Context, next domain.Board) error {
	remote, err := c.backend.GetBoard(ctx, c.entryID)
	if err != nil {
		return &SaveConflictError{cause: err}
	}
	token := remote.UpdatedAt
	remote = board.Normalize(remote, c.now())
	remote.UpdatedAt = token

	merged := board.Merge(remote, next, c.lastSynced)
	if discarded := board.ConflictingIDs(remote, next, c.lastSynced); len(discarded) > 0 {
		c.logger.WithField("discarded_remote_edits", discarded).Warn("Both sides edited the same items, keeping local versions")
	}
	saved, err := c.backend.SaveBoard(ctx, c.entryID, merged, token)
	if err != nil {
		c.logger.WithError(err).Error("Retry after merge failed, board left unsaved")
		return &SaveConflictError{cause: err}
	}
	c.adopt(saved)
	return nil
}

func (c *Controller) adopt(saved domain.Board) {
	c.board = saved
	c.lastSynced = saved
	c.hasSynced = saved.UpdatedAt != ""
	c.loaded = true
}

// Registry hands out one controller per board entry.
type Registry struct {
	mu          sync.Mutex
	backend     Backend
	logger      *log.Logger
	undoExpiry  time.Duration
	controllers map[string]*Controller
}

// NewRegistry builds an empty registry over backend.
func NewRegistry(backend Backend, logger *log.Logger, undoExpiry time.Duration) *Registry {
	return &Registry{
		backend:     backend,
		logger:      logger,
		undoExpiry:  undoExpiry,
		controllers: map[string]*Controller{},
	}
}

// Controller returns the controller for entryID, creating it on first use.
func (r *Registry) Controller(entryID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[entryID]
	if !ok {
		c = NewController(entryID, r.backend, r.logger, r.undoExpiry)
		r.controllers[entryID] = c
	}
	return c
}

// Entries lists the board entries with a live controller.
func (r *Registry) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		entries = append(entries, id)
	}
	return entries
}
