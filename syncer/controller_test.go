package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"choreboard/domain"
)

type conflictErr struct{ msg string }

func (e *conflictErr) Error() string { return e.msg }
func (e *conflictErr) Conflict()     {}

type unavailableErr struct{ msg string }

func (e *unavailableErr) Error() string { return e.msg }
func (e *unavailableErr) Unavailable()  {}

// fakeBackend scripts backend behavior per call.
type fakeBackend struct {
	getBoard  func(ctx context.Context, entryID string) (domain.Board, error)
	saveBoard func(ctx context.Context, entryID string, b domain.Board, expected string) (domain.Board, error)
	snapshot  func(ctx context.Context, entryID string) (domain.Board, bool)
	forceSave func(ctx context.Context, entryID string, b domain.Board) error

	saveCalls  int
	forceCalls int
}

func (f *fakeBackend) GetBoard(ctx context.Context, entryID string) (domain.Board, error) {
	if f.getBoard == nil {
		return domain.Board{}, nil
	}
	return f.getBoard(ctx, entryID)
}

func (f *fakeBackend) SaveBoard(ctx context.Context, entryID string, b domain.Board, expected string) (domain.Board, error) {
	f.saveCalls++
	if f.saveBoard == nil {
		b.UpdatedAt = fmt.Sprintf("v%d", f.saveCalls)
		return b, nil
	}
	return f.saveBoard(ctx, entryID, b, expected)
}

func (f *fakeBackend) Snapshot(ctx context.Context, entryID string) (domain.Board, bool) {
	if f.snapshot == nil {
		return domain.Board{}, false
	}
	return f.snapshot(ctx, entryID)
}

func (f *fakeBackend) ForceSave(ctx context.Context, entryID string, b domain.Board) error {
	f.forceCalls++
	if f.forceSave == nil {
		return nil
	}
	return f.forceSave(ctx, entryID, b)
}

func newTestController(backend Backend) *Controller {
	logger, _ := test.NewNullLogger()
	c := NewController("entry1", backend, logger, time.Second)
	c.now = func() time.Time {
		return time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func boardWithTask(id, title, version string) domain.Board {
	return domain.Board{
		Tasks: []domain.Task{{
			ID: id, Title: title, Column: "monday",
			CreatedAt: "2024-05-01T00:00:00Z", WeekStart: "2024-05-13",
		}},
		UpdatedAt: version,
	}
}

func addTask(id, title string) func(domain.Board) (domain.Board, error) {
	return func(b domain.Board) (domain.Board, error) {
		b.Tasks = append(b.Tasks, domain.Task{
			ID: id, Title: title, Column: "monday",
			CreatedAt: "2024-05-01T00:00:00Z", WeekStart: "2024-05-13",
		})
		return b, nil
	}
}

func hasTask(b domain.Board, id string) bool {
	for _, t := range b.Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func TestMutateSavesAndAdoptsVersion(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v1"), nil
		},
	}
	ctrl := newTestController(backend)

	got, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("t2", "Trash"))
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if !hasTask(got, "t1") || !hasTask(got, "t2") {
		t.Fatalf("saved board incomplete: %#v", got.Tasks)
	}
	if got.UpdatedAt != "v1" {
		// fake backend assigns v<call#>, first save call
		t.Fatalf("version not adopted, got %q", got.UpdatedAt)
	}
	if backend.saveCalls != 1 {
		t.Fatalf("expected exactly one save, got %d", backend.saveCalls)
	}
}

func TestMutateConflictMergesAndRetries(t *testing.T) {
	remote := boardWithTask("t1", "Dishes", "v2")
	remote.Tasks = append(remote.Tasks, domain.Task{
		ID: "remote1", Title: "Remote addition", Column: "tuesday",
		CreatedAt: "2024-05-02T00:00:00Z", WeekStart: "2024-05-13",
	})

	gets := 0
	backend := &fakeBackend{}
	backend.getBoard = func(context.Context, string) (domain.Board, error) {
		gets++
		if gets == 1 {
			return boardWithTask("t1", "Dishes", "v1"), nil
		}
		return remote, nil
	}
	backend.saveBoard = func(_ context.Context, _ string, b domain.Board, expected string) (domain.Board, error) {
		if expected == "v1" {
			return domain.Board{}, &conflictErr{msg: "etag mismatch"}
		}
		if expected != "v2" {
			return domain.Board{}, fmt.Errorf("unexpected token %q", expected)
		}
		b.UpdatedAt = "v3"
		return b, nil
	}
	ctrl := newTestController(backend)

	got, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("local1", "Local addition"))
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got.UpdatedAt != "v3" {
		t.Fatalf("expected retried save at v3, got %q", got.UpdatedAt)
	}
	if !hasTask(got, "local1") || !hasTask(got, "remote1") || !hasTask(got, "t1") {
		t.Fatalf("merge lost tasks: %#v", got.Tasks)
	}
	if backend.saveCalls != 2 {
		t.Fatalf("expected one retry, got %d saves", backend.saveCalls)
	}
}

func TestMutateDoubleConflictIsFatal(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v2"), nil
		},
		saveBoard: func(context.Context, string, domain.Board, string) (domain.Board, error) {
			return domain.Board{}, &conflictErr{msg: "etag mismatch"}
		},
	}
	ctrl := newTestController(backend)
	if _, err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("local1", "Local addition"))
	var fatal *SaveConflictError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected SaveConflictError, got %v", err)
	}

	current, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load after failure: %v", err)
	}
	if hasTask(current, "local1") {
		t.Fatal("failed mutation must not advance the board")
	}
}

func TestMutateUnavailableFallsBackToForceSave(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v1"), nil
		},
	}
	saves := 0
	backend.saveBoard = func(_ context.Context, _ string, b domain.Board, expected string) (domain.Board, error) {
		saves++
		if saves == 1 {
			return domain.Board{}, &unavailableErr{msg: "table down"}
		}
		if expected != "" {
			return domain.Board{}, fmt.Errorf("post-fallback save must be unconditional, got %q", expected)
		}
		b.UpdatedAt = "v9"
		return b, nil
	}
	ctrl := newTestController(backend)

	got, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("local1", "Local addition"))
	if err != nil {
		t.Fatalf("mutate with fallback: %v", err)
	}
	if backend.forceCalls != 1 {
		t.Fatalf("expected one force save, got %d", backend.forceCalls)
	}
	if !hasTask(got, "local1") {
		t.Fatalf("fallback save should keep the local change: %#v", got.Tasks)
	}
	if got.UpdatedAt != "" {
		t.Fatalf("queued board has no version token, got %q", got.UpdatedAt)
	}

	// once the store is back the next save must be unconditional
	if _, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("local2", "Another")); err != nil {
		t.Fatalf("save after fallback: %v", err)
	}
}

func TestMutateUnavailableWithFailedForceSaveSurfacesError(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v1"), nil
		},
		saveBoard: func(context.Context, string, domain.Board, string) (domain.Board, error) {
			return domain.Board{}, &unavailableErr{msg: "table down"}
		},
		forceSave: func(context.Context, string, domain.Board) error {
			return errors.New("queue down too")
		},
	}
	ctrl := newTestController(backend)

	_, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("local1", "Local addition"))
	if !IsUnavailable(err) {
		t.Fatalf("expected the unavailable error to surface, got %v", err)
	}

	current, loadErr := ctrl.Load(context.Background())
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if hasTask(current, "local1") {
		t.Fatal("failed mutation must not advance the board")
	}
}

func TestMutateRejectedWhileSaving(t *testing.T) {
	ctrl := newTestController(&fakeBackend{})
	ctrl.saving = true
	if _, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("t", "T")); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress, got %v", err)
	}
}

func TestLoadFallsBackToSnapshot(t *testing.T) {
	snap := boardWithTask("t1", "Dishes", "")
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return domain.Board{}, &unavailableErr{msg: "table down"}
		},
		snapshot: func(context.Context, string) (domain.Board, bool) {
			return snap, true
		},
	}
	saved := false
	backend.saveBoard = func(_ context.Context, _ string, b domain.Board, expected string) (domain.Board, error) {
		saved = true
		if expected != "" {
			return domain.Board{}, fmt.Errorf("save after snapshot load must be unconditional, got %q", expected)
		}
		b.UpdatedAt = "v1"
		return b, nil
	}
	ctrl := newTestController(backend)

	got, err := ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("load via snapshot: %v", err)
	}
	if !hasTask(got, "t1") {
		t.Fatalf("snapshot content lost: %#v", got.Tasks)
	}

	if _, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("t2", "Trash")); err != nil {
		t.Fatalf("mutate after snapshot load: %v", err)
	}
	if !saved {
		t.Fatal("mutation should have gone through SaveBoard")
	}
}

func TestLoadWithoutSnapshotSurfacesError(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return domain.Board{}, &unavailableErr{msg: "table down"}
		},
	}
	ctrl := newTestController(backend)
	if _, err := ctrl.Load(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestUndoRestoresPreviousBoard(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v1"), nil
		},
	}
	ctrl := newTestController(backend)

	if _, err := ctrl.Mutate(context.Background(), "create_task", true, addTask("t2", "Trash")); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	got, err := ctrl.Undo(context.Background())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if hasTask(got, "t2") {
		t.Fatalf("undo should drop the mutation, got %#v", got.Tasks)
	}
	if !hasTask(got, "t1") {
		t.Fatalf("undo lost unrelated tasks: %#v", got.Tasks)
	}

	if _, err := ctrl.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("second undo should find nothing, got %v", err)
	}
}

func TestNonUndoableMutationLeavesNoSnapshot(t *testing.T) {
	backend := &fakeBackend{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return boardWithTask("t1", "Dishes", "v1"), nil
		},
	}
	ctrl := newTestController(backend)

	if _, err := ctrl.Mutate(context.Background(), "weekly_refresh", false, addTask("t2", "Trash")); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if _, err := ctrl.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected nothing to undo, got %v", err)
	}
}

func TestRegistryReturnsSameController(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := NewRegistry(&fakeBackend{}, logger, time.Second)

	a := reg.Controller("entry1")
	b := reg.Controller("entry1")
	if a != b {
		t.Fatal("registry should hand out one controller per entry")
	}
	reg.Controller("entry2")

	entries := reg.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %v", entries)
	}
}
