package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"choreboard/domain"
)

type backend interface {
	GetBoard(ctx context.Context, entryID string) (domain.Board, error)
	SaveBoard(ctx context.Context, entryID string, b domain.Board, expectedUpdatedAt string) (domain.Board, error)
	ForceSave(ctx context.Context, entryID string, b domain.Board) error
}

// Cache wraps a Storage instance with a Redis snapshot of every board that
// passes through it. The snapshot is not a read-through cache: reads always
// hit the backing store, and the snapshot only serves as the stand-in source
// when the store is down.
type Cache struct {
	base   backend
	redis  *redis.Client
	ttl    time.Duration
	pool   *snapshotPool
	logger *log.Logger
}

// NewCache creates a snapshotting Storage wrapper using the provided Redis
// client and TTL. A zero TTL keeps snapshots forever.
func NewCache(base backend, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{
		base:   base,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
	if client != nil {
		c.pool = newSnapshotPool(client, ttl, logger)
	}
	return c
}

// Close stops the snapshot writers. Intended for tests.
func (c *Cache) Close() {
	if c.pool != nil {
		c.pool.shutdown()
	}
}

func (c *Cache) GetBoard(ctx context.Context, entryID string) (domain.Board, error) {
	b, err := c.base.GetBoard(ctx, entryID)
	if err != nil {
		return domain.Board{}, err
	}
	c.storeSnapshot(entryID, b)
	return b, nil
}

func (c *Cache) SaveBoard(ctx context.Context, entryID string, b domain.Board, expectedUpdatedAt string) (domain.Board, error) {
	saved, err := c.base.SaveBoard(ctx, entryID, b, expectedUpdatedAt)
	if err != nil {
		return domain.Board{}, err
	}
	c.storeSnapshot(entryID, saved)
	return saved, nil
}

func (c *Cache) ForceSave(ctx context.Context, entryID string, b domain.Board) error {
	if err := c.base.ForceSave(ctx, entryID, b); err != nil {
		return err
	}
	// The queued state is the freshest thing readers can get while the
	// table stays down.
	c.storeSnapshot(entryID, b)
	return nil
}

// Snapshot returns the last board seen for entryID, without a version token.
func (c *Cache) Snapshot(ctx context.Context, entryID string) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, snapshotKey(entryID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, snapshotKey(entryID)).Err()
		}
		return domain.Board{}, false
	}
	var b domain.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, snapshotKey(entryID)).Err()
		return domain.Board{}, false
	}
	return b, true
}

func (c *Cache) storeSnapshot(entryID string, b domain.Board) {
	if c.pool == nil {
		return
	}
	b.UpdatedAt = ""
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	if !c.pool.trySubmit(snapshotJob{entryID: entryID, data: data}) {
		c.logger.Warnf("snapshot writers saturated, skipping snapshot for entry %s", entryID)
	}
}

func snapshotKey(entryID string) string {
	return "board:" + entryID
}
