package shared

import (
	"fmt"
	"sort"
	"sync"
)

// StockLockKey builds the critical-section key for one (item, warehouse) pair.
func StockLockKey(itemID, warehouseID int64) string {
	return fmt.Sprintf("stock:%d:%d:lock", itemID, warehouseID)
}

// KeyLocker serialises critical sections per string key. The ledger engine
// uses it so that the read-balance/append/upsert sequence for one
// (item, warehouse) pair never interleaves with another writer on the same
// pair.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLocker constructs an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *KeyLocker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key.
func (l *KeyLocker) Lock(key string) {
	l.get(key).Lock()
}

// Unlock releases the mutex for key.
func (l *KeyLocker) Unlock(key string) {
	l.get(key).Unlock()
}

// LockAll acquires every key in lexicographic order and returns the release
// function. Ordered acquisition keeps two transfers moving stock in opposite
// directions from deadlocking each other.
func (l *KeyLocker) LockAll(keys []string) func() {
	uniq := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := uniq[key]; ok {
			continue
		}
		uniq[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	for _, key := range ordered {
		l.Lock(key)
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			l.Unlock(ordered[i])
		}
	}
}
