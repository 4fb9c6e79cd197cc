package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("SAVE_IN_PROGRESS")

// Release frees a lock obtained from a Locker. Releasing an expired or
// foreign lock is a no-op.
type Release func(ctx context.Context) error

// Locker serialises saves per report.
type Locker interface {
	Acquire(ctx context.Context, reportID int64, ttl time.Duration) (Release, error)
}

func LockKey(reportID int64) string { return fmt.Sprintf("%slock:%d", keyPrefix, reportID) }

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb redis.Cmdable
}

func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire sets the lock key with NX and a TTL. The token guards release so
// a save that outlived its TTL cannot drop a newer holder's lock.
func (l *RedisLocker) Acquire(ctx context.Context, reportID int64, ttl time.Duration) (Release, error) {
	key := LockKey(reportID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %d", ErrLockHeld, reportID)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}, nil
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[int64]memoryLease
	clock func() time.Time
}

type memoryLease struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[int64]memoryLease{}, clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, reportID int64, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if lease, ok := l.held[reportID]; ok && now.Before(lease.expires) {
		return nil, fmt.Errorf("%w: report %d", ErrLockHeld, reportID)
	}

	token := uuid.NewString()
	l.held[reportID] = memoryLease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[reportID]; ok && lease.token == token {
			delete(l.held, reportID)
		}
		return nil
	}, nil
}
