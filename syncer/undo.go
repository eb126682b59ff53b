package syncer

import (
	"sync"
	"time"

	"choreboard/domain"
)

// DefaultUndoExpiry is how long a recorded snapshot stays restorable.
const DefaultUndoExpiry = 10 * time.Second

// undoLedger holds at most one pending board snapshot. Recording a new
// snapshot replaces the previous one, and each snapshot expires on its own
// timer.
type undoLedger struct {
	mu     sync.Mutex
	expiry time.Duration

	board   domain.Board
	label   string
	pending bool
	timer   *time.Timer
}

func newUndoLedger(expiry time.Duration) *undoLedger {
	if expiry <= 0 {
		expiry = DefaultUndoExpiry
	}
	return &undoLedger{expiry: expiry}
}

// Record stores b as the snapshot to restore, discarding any earlier one.
func (l *undoLedger) Record(b domain.Board, label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.board = b
	l.label = label
	l.pending = true
	l.timer = time.AfterFunc(l.expiry, l.expire)
}

func (l *undoLedger) expire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = false
	l.board = domain.Board{}
	l.label = ""
}

// Take consumes the pending snapshot, if any.
func (l *undoLedger) Take() (domain.Board, string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return domain.Board{}, "", false
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	b, label := l.board, l.label
	l.pending = false
	l.board = domain.Board{}
	l.label = ""
	return b, label, true
}
