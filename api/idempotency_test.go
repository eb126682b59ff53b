package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeduper(client, time.Hour), mr
}

func TestRedisDeduperAdd(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	added, err := d.Add(ctx, "entry1", "key-1")
	if err != nil || !added {
		t.Fatalf("first add: %v %v", added, err)
	}
	added, err = d.Add(ctx, "entry1", "key-1")
	if err != nil || added {
		t.Fatalf("duplicate add should report false, got %v %v", added, err)
	}
}

func TestRedisDeduperScopesKeysPerEntry(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "entry1", "key-1"); !added {
		t.Fatal("first add")
	}
	if added, _ := d.Add(ctx, "entry2", "key-1"); !added {
		t.Fatal("same key on another board is a different request")
	}
}

func TestRedisDeduperRemove(t *testing.T) {
	d, _ := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "entry1", "key-1"); !added {
		t.Fatal("first add")
	}
	if err := d.Remove(ctx, "entry1", "key-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := d.Add(ctx, "entry1", "key-1"); !added {
		t.Fatal("removed key should be addable again")
	}
}

func TestRedisDeduperKeysExpire(t *testing.T) {
	d, mr := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "entry1", "key-1"); !added {
		t.Fatal("first add")
	}
	mr.FastForward(2 * time.Hour)
	if added, _ := d.Add(ctx, "entry1", "key-1"); !added {
		t.Fatal("expired key should be addable again")
	}
}
