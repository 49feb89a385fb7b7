package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/rux/pkg/ports"
)

// lockEntry holds the lock token slot and the number of holders and waiters.
type lockEntry struct {
	slot chan struct{}
	refs int
}

// Locker is an in-process ports.DistributedLocker. It serializes engines
// sharing one process; entries are reference counted so unused keys do not leak.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// Lock blocks until key is free or ctx ends. A positive ttl releases the lock
// on its own once elapsed; releasing an expired lock is a no-op.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	entry := l.acquire(key)
	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	free := func() {
		once.Do(func() {
			<-entry.slot
			l.release(key)
		})
	}
	var timer *time.Timer
	if ttl > 0 {
		timer = time.AfterFunc(ttl, free)
	}

	return func(context.Context) error {
		if timer != nil {
			timer.Stop()
		}
		free()
		return nil
	}, nil
}

// Held returns how many keys are locked or awaited.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
