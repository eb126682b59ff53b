package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"choreboard/domain"
)

type fakeStore struct {
	getBoard  func(ctx context.Context, entryID string) (domain.Board, error)
	saveBoard func(ctx context.Context, entryID string, b domain.Board, expected string) (domain.Board, error)
	forceSave func(ctx context.Context, entryID string, b domain.Board) error
}

func (f *fakeStore) GetBoard(ctx context.Context, entryID string) (domain.Board, error) {
	return f.getBoard(ctx, entryID)
}

func (f *fakeStore) SaveBoard(ctx context.Context, entryID string, b domain.Board, expected string) (domain.Board, error) {
	return f.saveBoard(ctx, entryID, b, expected)
}

func (f *fakeStore) ForceSave(ctx context.Context, entryID string, b domain.Board) error {
	return f.forceSave(ctx, entryID, b)
}

func newTestCache(t *testing.T, base backend) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger, _ := test.NewNullLogger()
	c := NewCache(base, client, time.Hour, logger)
	t.Cleanup(c.Close)
	return c, client
}

// waitForSnapshot polls until the async snapshot writer has landed the board.
func waitForSnapshot(t *testing.T, c *Cache, entryID string) domain.Board {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if b, ok := c.Snapshot(context.Background(), entryID); ok {
			return b
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never written")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testBoard(version string) domain.Board {
	return domain.Board{
		Tasks: []domain.Task{{
			ID: "t1", Title: "Dishes", Column: "monday",
			CreatedAt: "2024-05-01T00:00:00Z", WeekStart: "2024-05-13",
		}},
		UpdatedAt: version,
	}
}

func TestCacheSnapshotsSavedBoard(t *testing.T) {
	base := &fakeStore{
		saveBoard: func(_ context.Context, _ string, b domain.Board, _ string) (domain.Board, error) {
			b.UpdatedAt = "v1"
			return b, nil
		},
	}
	c, _ := newTestCache(t, base)

	saved, err := c.SaveBoard(context.Background(), "entry1", testBoard(""), "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.UpdatedAt != "v1" {
		t.Fatalf("version token lost on passthrough: %q", saved.UpdatedAt)
	}

	snap := waitForSnapshot(t, c, "entry1")
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "t1" {
		t.Fatalf("snapshot content wrong: %#v", snap.Tasks)
	}
	if snap.UpdatedAt != "" {
		t.Fatalf("snapshot must not carry a version token, got %q", snap.UpdatedAt)
	}
}

func TestCacheSnapshotsFetchedBoard(t *testing.T) {
	base := &fakeStore{
		getBoard: func(context.Context, string) (domain.Board, error) {
			return testBoard("v3"), nil
		},
	}
	c, _ := newTestCache(t, base)

	if _, err := c.GetBoard(context.Background(), "entry1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	snap := waitForSnapshot(t, c, "entry1")
	if snap.UpdatedAt != "" || len(snap.Tasks) != 1 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestCacheForceSaveSnapshotsQueuedBoard(t *testing.T) {
	base := &fakeStore{
		forceSave: func(context.Context, string, domain.Board) error { return nil },
	}
	c, _ := newTestCache(t, base)

	if err := c.ForceSave(context.Background(), "entry1", testBoard("v1")); err != nil {
		t.Fatalf("force save: %v", err)
	}
	snap := waitForSnapshot(t, c, "entry1")
	if len(snap.Tasks) != 1 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestCacheSnapshotMissing(t *testing.T) {
	c, _ := newTestCache(t, &fakeStore{})
	if _, ok := c.Snapshot(context.Background(), "entry1"); ok {
		t.Fatal("no snapshot was ever stored")
	}
}

func TestCacheSnapshotDropsCorruptEntry(t *testing.T) {
	c, client := newTestCache(t, &fakeStore{})
	ctx := context.Background()
	if err := client.Set(ctx, snapshotKey("entry1"), "{not json", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, ok := c.Snapshot(ctx, "entry1"); ok {
		t.Fatal("corrupt snapshot must not decode")
	}
	if err := client.Get(ctx, snapshotKey("entry1")).Err(); err != redis.Nil {
		t.Fatalf("corrupt snapshot should be deleted, got %v", err)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	base := &fakeStore{
		saveBoard: func(_ context.Context, _ string, b domain.Board, _ string) (domain.Board, error) {
			b.UpdatedAt = "v1"
			return b, nil
		},
	}
	logger, _ := test.NewNullLogger()
	c := NewCache(base, nil, time.Hour, logger)

	saved, err := c.SaveBoard(context.Background(), "entry1", testBoard(""), "")
	if err != nil || saved.UpdatedAt != "v1" {
		t.Fatalf("passthrough save: %v %q", err, saved.UpdatedAt)
	}
	if _, ok := c.Snapshot(context.Background(), "entry1"); ok {
		t.Fatal("snapshot without redis should report nothing")
	}
}
