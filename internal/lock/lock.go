// Package lock serializes named critical sections across service instances
// sharing one Redis. It protects multi-step updates that are not atomic at
// the row level, such as coupon use counters.
package lock

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nomadhq/popup-registration/internal/apperrors"
)

const (
	// holdTTL bounds how long a crashed holder can block others.
	holdTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease is a held lock. Release is safe to call on every exit path; it only
// removes the key if this lease still owns it.
type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, name string, timeout time.Duration) (Lease, error)
}

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

// KeyFor maps a resource name to a fixed-width integer lock key so that all
// instances derive the same identity for the same name.
func KeyFor(name string) string {
	h := fnv.New64a()
	h.Write([]byte(name))
	return "lock:" + strconv.FormatUint(h.Sum64(), 10)
}

// Acquire blocks until the named lock is held, the timeout elapses, or ctx
// is canceled. A zero timeout waits indefinitely (until ctx cancellation).
func (l *RedisLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (Lease, error) {
	key := KeyFor(name)
	token := uuid.NewString()

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, holdTTL).Result()
		if err == nil && ok {
			return &redisLease{client: l.client, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, apperrors.ErrLockTimeout
		case <-ticker.C:
		}
	}
}

func (le *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err()
}
