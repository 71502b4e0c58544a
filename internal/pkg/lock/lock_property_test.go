// Package lock provides per-key mutual exclusion.
// Property-based tests for per-challenge exclusion.
package lock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// heldKeys returns the number of keys in the table.
func heldKeys(kl *KeyLock) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

func isHeld(kl *KeyLock, key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	_, ok := kl.locks[key]
	return ok
}

// TestTryWithLockSerializesProperty checks that read-modify-write under
// TryWithLock applies exactly the updates that got the key.
func TestTryWithLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(-1000, 1000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		key := rapid.StringMatching(`challenge_[0-9]{1,4}`).Draw(t, "key")

		deltas := make([]int64, numOps)
		for i := range deltas {
			deltas[i] = rapid.Int64Range(-500, 500).Draw(t, "delta")
		}

		kl := NewKeyLock()
		marbles := initial
		var applied atomic.Int64
		var busy atomic.Int32

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(d int64) {
				defer wg.Done()
				err := kl.TryWithLock(func() error {
					marbles += d
					applied.Add(d)
					return nil
				}, key)
				if err != nil {
					busy.Add(1)
				}
			}(d)
		}
		wg.Wait()

		if marbles != initial+applied.Load() {
			t.Fatalf("expected %d, got %d", initial+applied.Load(), marbles)
		}
		if int(busy.Load()) >= numOps {
			t.Fatal("at least one update should get the key")
		}
		if heldKeys(kl) != 0 {
			t.Fatalf("expected idle keys to be dropped, %d remain", heldKeys(kl))
		}
	})
}

// TestIndependentKeysProperty tests that locks for different keys don't
// block each other.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(t, "numKeys")

		kl := NewKeyLock()
		for i := 0; i < numKeys; i++ {
			if !kl.TryLock(fmt.Sprintf("user%d", i)) {
				t.Fatalf("key user%d should be free", i)
			}
		}
		if heldKeys(kl) != numKeys {
			t.Fatalf("expected %d held keys, got %d", numKeys, heldKeys(kl))
		}
		for i := 0; i < numKeys; i++ {
			kl.Unlock(fmt.Sprintf("user%d", i))
		}
		if heldKeys(kl) != 0 {
			t.Fatalf("expected no held keys, got %d", heldKeys(kl))
		}
	})
}

// TestTryLockAllowsOneHolderProperty checks that concurrent TryLock calls never
// let two holders in at once.
func TestTryLockAllowsOneHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		kl := NewKeyLock()
		var inside, maxInside atomic.Int32
		var successCount atomic.Int32

		startCh := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if kl.TryLock("carol") {
					successCount.Add(1)
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					inside.Add(-1)
					kl.Unlock("carol")
				}
			}()
		}
		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed")
		}
		if maxInside.Load() > 1 {
			t.Fatalf("two holders were inside at once")
		}
		if !kl.TryLock("carol") {
			t.Fatal("lock should be available after all holders release")
		}
		kl.Unlock("carol")
	})
}

// TestTryLockAllIsAllOrNothingProperty checks that a failed TryLockAll leaves
// no key held.
func TestTryLockAllIsAllOrNothingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{2,6}`), 2, 6, rapid.ID[string]).Draw(t, "keys")
		busy := rapid.SampledFrom(keys).Draw(t, "busy")

		kl := NewKeyLock()
		if !kl.TryLock(busy) {
			t.Fatal("first TryLock should succeed")
		}

		_, ok := kl.TryLockAll(keys...)
		if ok {
			t.Fatalf("TryLockAll should fail while %q is held", busy)
		}
		for _, k := range keys {
			if k != busy && isHeld(kl, k) {
				t.Fatalf("key %q left held after failed TryLockAll", k)
			}
		}
		kl.Unlock(busy)

		unlock, ok := kl.TryLockAll(keys...)
		if !ok {
			t.Fatal("TryLockAll should succeed once keys are free")
		}
		unlock()
		if heldKeys(kl) != 0 {
			t.Fatalf("expected no held keys, got %d", heldKeys(kl))
		}
	})
}

func TestTryLockAllCollapsesDuplicates(t *testing.T) {
	kl := NewKeyLock()

	unlock, ok := kl.TryLockAll("alice", "alice")
	assert.True(t, ok)
	assert.Equal(t, 1, heldKeys(kl))
	unlock()
	assert.Equal(t, 0, heldKeys(kl))
}

func TestTryWithLock(t *testing.T) {
	kl := NewKeyLock()
	require.True(t, kl.TryLock("bob"))

	called := false
	err := kl.TryWithLock(func() error {
		called = true
		return nil
	}, "alice", "bob")
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called)

	kl.Unlock("bob")
	err = kl.TryWithLock(func() error {
		called = true
		return nil
	}, "alice", "bob")
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestUnlockUnknownKeyIsNoop(t *testing.T) {
	kl := NewKeyLock()
	kl.Unlock("nobody")
	assert.Equal(t, 0, heldKeys(kl))
}
