package availability

import (
	"context"
	"sync"
)

// ProviderLocker serializes reservation attempts per provider. Lock blocks
// until the provider's lock is held or ctx is done, and returns the release
// function. Only the write path uses it; reads stay fully concurrent.
type ProviderLocker interface {
	Lock(ctx context.Context, providerID string) (release func(), err error)
}

// memoryLocker is a keyed in-process mutex, sufficient for single-instance
// deployments and for tests. Multi-replica deployments use the redis locker.
type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// NewMemoryLocker returns an in-process ProviderLocker.
func NewMemoryLocker() ProviderLocker {
	return &memoryLocker{locks: make(map[string]*lockEntry)}
}

func (l *memoryLocker) Lock(ctx context.Context, providerID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[providerID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[providerID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.put(providerID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-entry.ch
			l.put(providerID, entry)
		})
	}
	return release, nil
}

func (l *memoryLocker) put(providerID string, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, providerID)
	}
	l.mu.Unlock()
}
