package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	snapshotWorkers = 4
	snapshotBuffer  = 256
	writeTimeout    = 5 * time.Second
	handoffTimeout  = 15 * time.Millisecond
)

type snapshotJob struct {
	entryID string
	data    []byte
}

// snapshotPool writes board snapshots to Redis off the request path. Handoff
// is non-blocking with a short grace timer; when the buffer is saturated the
// snapshot is dropped rather than stalling a save.
type snapshotPool struct {
	jobs   chan snapshotJob
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
	wg     sync.WaitGroup
}

func newSnapshotPool(client *redis.Client, ttl time.Duration, logger *log.Logger) *snapshotPool {
	p := &snapshotPool{
		jobs:   make(chan snapshotJob, snapshotBuffer),
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
	for i := 0; i < snapshotWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *snapshotPool) shutdown() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *snapshotPool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.redis.Set(ctx, snapshotKey(j.entryID), j.data, p.ttl).Err()
		cancel()
		if err != nil {
			p.logger.Errorf("snapshot write failed, err: %v, entry: %s", err, j.entryID)
		}
	}
}

func (p *snapshotPool) trySubmit(job snapshotJob) bool {
	if ok, closed := trySendNonBlocking(p.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(p.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan snapshotJob, job snapshotJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan snapshotJob, job snapshotJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
