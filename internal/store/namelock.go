package store

import "sync"

// NameLocker hands out a mutex per key, created on first use. §5 requires
// lifecycle operations against the same container to be serialized; the
// Container Manager locks by container name around each operation using
// one of these.
type NameLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewNameLocker builds an empty locker.
func NewNameLocker() *NameLocker {
	return &NameLocker{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the mutex for key, creating it if this is the first time
// key has been locked, and returns an unlock function.
func (l *NameLocker) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
