package lock

import (
	"context"
	"sync"
	"time"

	"arcadeswap-api/pkg/uid"
)

// leaseEntry is a held key with expiration.
type leaseEntry struct {
	token     string
	expiresAt time.Time
}

func (e *leaseEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryLocker is an in-process implementation of Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*leaseEntry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// NewMemoryLocker creates a locker with automatic removal of expired leases.
func NewMemoryLocker() *MemoryLocker {
	l := &MemoryLocker{
		entries:         make(map[string]*leaseEntry),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go l.cleanup()

	return l
}

// TryAcquire takes the lease on key or returns ErrLockHeld.
func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, held := l.entries[key]; held && !entry.isExpired(now) {
		return nil, ErrLockHeld
	}

	token := uid.New()
	l.entries[key] = &leaseEntry{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}, nil
}

// release drops the lease only if it still belongs to token.
func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[key]; ok && entry.token == token {
		delete(l.entries, key)
	}
}

// Held returns the number of live leases.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	n := 0
	for _, entry := range l.entries {
		if !entry.isExpired(now) {
			n++
		}
	}
	return n
}

// Stats reports locker state for the admin dashboard.
func (l *MemoryLocker) Stats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"type":   "memory",
		"status": "ok",
		"held":   l.Held(),
	}
}

// Close stops the background cleanup goroutine.
func (l *MemoryLocker) Close() error {
	l.closeOnce.Do(func() { close(l.stopCleanup) })
	return nil
}

// cleanup periodically removes expired leases.
func (l *MemoryLocker) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeExpired()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *MemoryLocker) removeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, entry := range l.entries {
		if entry.isExpired(now) {
			delete(l.entries, key)
		}
	}
}

var _ Locker = (*MemoryLocker)(nil)
