package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned when the key is already held by someone else.
var ErrLocked = errors.New("lock already held")

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker hands out short-lived exclusive leases on string keys.
// Acquire never blocks waiting for the holder; it fails with ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return nil, ErrLocked
	}
	expiresAt := now.Add(ttl)
	l.held[key] = expiresAt

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a lease that expired may already belong to someone else
			if l.held[key].Equal(expiresAt) {
				delete(l.held, key)
			}
		})
	}, nil
}
