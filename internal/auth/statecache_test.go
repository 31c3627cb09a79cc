package auth

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func newTestStateCache(t *testing.T, ttl time.Duration, capacity int) *StateCache {
	t.Helper()
	c := NewStateCache(ttl, capacity, nil)
	t.Cleanup(c.Close)
	return c
}

func TestStateCache_TakeOnce(t *testing.T) {
	cache := newTestStateCache(t, time.Minute, 0)

	cache.Put("state-1", "verifier-1", []string{"User.Read", "Mail.Send"})

	verifier, scopes, err := cache.Take("state-1")
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if verifier != "verifier-1" {
		t.Errorf("Take() verifier = %q, want %q", verifier, "verifier-1")
	}
	if !reflect.DeepEqual(scopes, []string{"User.Read", "Mail.Send"}) {
		t.Errorf("Take() scopes = %v, want the scopes stored with the state", scopes)
	}

	// Second take must fail: consumption is destructive
	if _, _, err := cache.Take("state-1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Take() error = %v, want ErrInvalidState", err)
	}
}

func TestStateCache_TakeUnknown(t *testing.T) {
	cache := newTestStateCache(t, time.Minute, 0)

	if _, _, err := cache.Take("never-stored"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Take() error = %v, want ErrInvalidState", err)
	}
}

func TestStateCache_TakeExpired(t *testing.T) {
	cache := newTestStateCache(t, 10*time.Minute, 0)

	cache.Put("state-1", "verifier-1", nil)

	// Advance the cache clock past the TTL
	cache.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	if _, _, err := cache.Take("state-1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Take() after TTL error = %v, want ErrInvalidState", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should have been consumed, len = %d", cache.Len())
	}
}

func TestStateCache_OverwriteLastWins(t *testing.T) {
	cache := newTestStateCache(t, time.Minute, 0)

	cache.Put("state-1", "verifier-old", nil)
	cache.Put("state-1", "verifier-new", nil)

	verifier, _, err := cache.Take("state-1")
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if verifier != "verifier-new" {
		t.Errorf("Take() = %q, want last write %q", verifier, "verifier-new")
	}
}

func TestStateCache_ConcurrentTakeSingleWinner(t *testing.T) {
	cache := newTestStateCache(t, time.Minute, 0)
	cache.Put("contested", "verifier", nil)

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cache.Take("contested"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("concurrent Take() winners = %d, want exactly 1", successes)
	}
}

func TestStateCache_CapacityEvictsOldest(t *testing.T) {
	cache := newTestStateCache(t, time.Minute, 3)

	base := time.Now()
	clock := base
	cache.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		clock = base.Add(time.Duration(i) * time.Second)
		cache.Put(fmt.Sprintf("state-%d", i), "verifier", nil)
	}

	// The cache is full; the next Put evicts the oldest entry
	clock = base.Add(10 * time.Second)
	cache.Put("state-3", "verifier", nil)

	if cache.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cache.Len())
	}
	if _, _, err := cache.Take("state-0"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("oldest entry should have been evicted")
	}
	if _, _, err := cache.Take("state-3"); err != nil {
		t.Errorf("newest entry missing: %v", err)
	}
}

func TestStateCache_SweepExpired(t *testing.T) {
	cache := newTestStateCache(t, 10*time.Minute, 0)

	cache.Put("old", "verifier", nil)
	cache.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	cache.Put("fresh", "verifier", nil)

	cache.sweepExpired()

	if cache.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", cache.Len())
	}
	if _, _, err := cache.Take("fresh"); err != nil {
		t.Errorf("fresh entry missing after sweep: %v", err)
	}
}
