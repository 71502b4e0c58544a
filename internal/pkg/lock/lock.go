// Package lock provides per-key mutual exclusion, used to keep two handlers
// from acting on the same challenge at once.
package lock

import (
	"slices"
	"sync"
)

// keyMutex is a mutex with a count of holders so idle keys can be dropped
// from the table.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock hands out one mutex per string key.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

func (kl *KeyLock) release(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
}

// Unlock releases a key held with TryLock.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// TryLock attempts to acquire the key without blocking.
func (kl *KeyLock) TryLock(key string) bool {
	m := kl.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	kl.release(key, m)
	return false
}

// TryLockAll acquires every key or none. Keys are taken in sorted order and
// duplicates are collapsed. The returned func releases them.
func (kl *KeyLock) TryLockAll(keys ...string) (func(), bool) {
	keys = sortedUnique(keys)

	held := make([]string, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			kl.Unlock(held[i])
		}
	}

	for _, k := range keys {
		if !kl.TryLock(k) {
			unlock()
			return func() {}, false
		}
		held = append(held, k)
	}
	return unlock, true
}

// TryWithLock executes fn while holding every key, or returns ErrBusy without
// running fn if any key is taken.
func (kl *KeyLock) TryWithLock(fn func() error, keys ...string) error {
	unlock, ok := kl.TryLockAll(keys...)
	if !ok {
		return ErrBusy
	}
	defer unlock()
	return fn()
}

func sortedUnique(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
