package lock

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestSerializedCountersProperty checks that for any number of concurrent
// increments under the same key, the final count matches sequential
// execution.
func TestSerializedCountersProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 40).Draw(t, "numOps")
		key := rapid.StringMatching(`[a-z0-9:]{3,20}`).Draw(t, "key")

		kl := NewKeyedLock()
		counter := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				counter++
			}()
		}
		wg.Wait()

		if counter != numOps {
			t.Fatalf("counter mismatch: expected %d, got %d", numOps, counter)
		}
	})
}

// TestIndependentKeysProperty checks that locks for different keys do not
// interfere with each other's counts.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 8).Draw(t, "numKeys")
		opsPerKey := rapid.IntRange(5, 20).Draw(t, "opsPerKey")

		kl := NewKeyedLock()
		counters := make([]int, numKeys)

		var wg sync.WaitGroup
		wg.Add(numKeys * opsPerKey)
		for k := 0; k < numKeys; k++ {
			key := string(rune('a' + k))
			for i := 0; i < opsPerKey; i++ {
				go func(k int, key string) {
					defer wg.Done()
					kl.Lock(key)
					defer kl.Unlock(key)
					counters[k]++
				}(k, key)
			}
		}
		wg.Wait()

		for k := 0; k < numKeys; k++ {
			if counters[k] != opsPerKey {
				t.Fatalf("key %d counter mismatch: expected %d, got %d", k, opsPerKey, counters[k])
			}
		}
	})
}

func TestTryLock(t *testing.T) {
	kl := NewKeyedLock()

	if !kl.TryLock("a") {
		t.Fatal("TryLock should succeed on a free key")
	}
	if kl.TryLock("a") {
		t.Fatal("TryLock should fail while the key is held")
	}
	if !kl.TryLock("b") {
		t.Fatal("TryLock on a different key should succeed")
	}
	kl.Unlock("a")
	kl.Unlock("b")

	if !kl.TryLock("a") {
		t.Fatal("TryLock should succeed after Unlock")
	}
	kl.Unlock("a")
}

func TestWithLock(t *testing.T) {
	kl := NewKeyedLock()
	n := 0
	err := kl.WithLock("k", func() error {
		n++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("fn not executed")
	}
	if !kl.TryLock("k") {
		t.Fatal("lock should be released after WithLock")
	}
	kl.Unlock("k")
}
