package lock

import (
	"context"
	"errors"
	"time"
)

// Locker hands out short-lived exclusive leases on string keys.
// The in-memory implementation serves single-instance deployments; the Redis
// implementation serves several API instances sharing one database.
type Locker interface {
	// TryAcquire takes the lease on key for ttl or returns ErrLockHeld
	// without waiting. The returned release func is safe to call more than once.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)

	// Stats reports locker state for the admin dashboard.
	Stats(ctx context.Context) map[string]interface{}

	// Close frees the underlying resources.
	Close() error
}

// ErrLockHeld indicates another holder owns the lease.
var ErrLockHeld = errors.New("lock is held by another owner")

// retryInterval is the pause between attempts in Acquire.
const retryInterval = 15 * time.Millisecond

// Acquire retries TryAcquire until the lease is obtained, wait elapses or ctx
// is done. It returns ErrLockHeld when the wait budget runs out.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	for {
		release, err := l.TryAcquire(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
