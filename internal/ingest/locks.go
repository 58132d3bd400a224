package ingest

import "sync"

// Locks is the set of message ids currently being ingested.
type Locks struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{active: make(map[int64]struct{})}
}

// TryAcquire marks id as in progress. It returns false if another caller
// already holds it.
func (l *Locks) TryAcquire(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[id]; busy {
		return false
	}
	l.active[id] = struct{}{}
	return true
}

// Release removes id from the set.
func (l *Locks) Release(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// Len returns the number of ids in progress.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}
