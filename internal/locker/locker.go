// Package locker provides a keyed mutex registry: one exclusive section per
// logical resource id, created lazily on first use.
package locker

import "sync"

// Keyed hands out one mutex per key. The zero value is not usable; call New.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty registry.
func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use, and returns the
// matching unlock function.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
