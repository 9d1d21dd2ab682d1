package service

import "sync"

// keyedMutex serializes operations per claim ID. Claims are independent
// aggregates; a global lock would serialize unrelated tenants' traffic.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*claimLock
}

type claimLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*claimLock)}
}

// lock acquires the mutex for a key and returns its unlock function.
// Entries are reference-counted and removed when the last holder releases.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &claimLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
