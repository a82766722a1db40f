package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLockBusy is returned when a lock could not be acquired before the
// context expired.
var ErrLockBusy = errors.New("lock busy")

// Locker provides mutual exclusion scoped to a key (one product id).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ── Redis locker ──────────────────────────────────────────────────────────────

const (
	lockKeyPrefix = "lock:"
	lockRetry     = 50 * time.Millisecond
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a SET NX PX lock shared by every service instance.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockBusy
		case <-ticker.C:
		}
	}

	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(relCtx, l.rdb, []string{fullKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("lock: release failed, waiting for TTL")
		}
	}, nil
}

// ── In-process locker ─────────────────────────────────────────────────────────

// LocalLocker serialises callers within one process. Used by the CLI and
// tests, where no Redis is available.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ErrLockBusy
	}
}
