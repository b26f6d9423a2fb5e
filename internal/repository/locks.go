package repository

import "sync"

// keyedLocks provides per-identifier mutual exclusion. Mutations on the
// same footprint serialize against each other while operations on different
// footprints proceed in parallel. Entries are reference counted and dropped
// when the last holder unlocks, so the map does not grow with the id space.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// Lock acquires the lock for id and returns the matching unlock function.
func (k *keyedLocks) Lock(id string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
