// Package redislock serializes per-candidate profile writes across
// processes with a Redis SET NX PX lock. Without a Redis address it degrades
// to an in-process keyed mutex, which is enough for single-instance
// deployments and tests.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jobfindr/matchengine/internal/domain"
)

// releaseScript deletes the lock only when this holder still owns it, so an
// expired lock reacquired by someone else is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const acquirePollInterval = 50 * time.Millisecond

// Locker implements domain.ProfileLocker.
type Locker struct {
	rdb    *redis.Client
	ttl    time.Duration
	script *redis.Script

	mu    sync.Mutex
	local map[string]*sync.Mutex
}

// New constructs a Locker. A nil client selects the in-process fallback.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		rdb:    rdb,
		ttl:    ttl,
		script: redis.NewScript(releaseScript),
		local:  make(map[string]*sync.Mutex),
	}
}

// Lock blocks until the per-candidate lock is held or the context expires.
func (l *Locker) Lock(ctx domain.Context, userID string) (func(), error) {
	if l.rdb == nil {
		return l.lockLocal(userID), nil
	}

	key := "lock:profile:" + userID
	token := uuid.New().String()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("op=lock.acquire: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("op=lock.acquire: %w", ctx.Err())
		case <-time.After(acquirePollInterval):
		}
	}

	return func() {
		// Release runs on its own deadline; the caller's ctx is often
		// already done by the time a deferred unlock fires.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.script.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
			slog.Warn("profile lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (l *Locker) lockLocal(userID string) func() {
	l.mu.Lock()
	m, ok := l.local[userID]
	if !ok {
		m = &sync.Mutex{}
		l.local[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
