package ocw

import (
	"sync"
	"time"
)

// LockTable is a named advisory lock table with per-lock TTLs. It stops a
// single node from emitting the same external side effect twice across
// successive blocks while the on-chain record is still in flight. It is a
// local optimization, not a correctness lock: the handlers reject duplicates
// idempotently, and lock absence at process start just means "not sent".
type LockTable struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]time.Time
}

func NewLockTable() *LockTable {
	return &LockTable{
		now:   time.Now,
		locks: make(map[string]time.Time),
	}
}

// TryAcquire takes the named lock for ttl. It reports false while an
// unexpired holder exists.
func (t *LockTable) TryAcquire(name string, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if expiry, ok := t.locks[name]; ok && now.Before(expiry) {
		return false
	}
	t.locks[name] = now.Add(ttl)
	t.sweep(now)
	return true
}

func (t *LockTable) Release(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locks, name)
}

// sweep drops expired entries so the table stays bounded by live locks.
// Callers hold the mutex.
func (t *LockTable) sweep(now time.Time) {
	for name, expiry := range t.locks {
		if !now.Before(expiry) {
			delete(t.locks, name)
		}
	}
}
