package auth

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultStateTTL is how long a pending login may wait for its callback.
	DefaultStateTTL = 10 * time.Minute

	// DefaultStateCapacity bounds the number of pending logins held at once.
	// A sustained flood of unfinished logins evicts the oldest entries
	// instead of growing without bound.
	DefaultStateCapacity = 10000

	stateSweepInterval = 1 * time.Minute
)

type stateEntry struct {
	verifier  string
	scopes    []string
	createdAt time.Time
}

// StateCache maps anti-CSRF state tokens to their pending login: the PKCE
// verifier and the scopes the login was initiated with. Entries are
// single-use: Take removes the entry it returns, so a replayed state can
// never succeed twice.
type StateCache struct {
	mu       sync.Mutex
	entries  map[string]stateEntry
	ttl      time.Duration
	capacity int
	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// NewStateCache creates a state cache with the given TTL and capacity.
// Zero values fall back to DefaultStateTTL and DefaultStateCapacity.
// A background sweep evicts expired entries once per minute; Close stops it.
func NewStateCache(ttl time.Duration, capacity int, logger *slog.Logger) *StateCache {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if capacity <= 0 {
		capacity = DefaultStateCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &StateCache{
		entries:  make(map[string]stateEntry),
		ttl:      ttl,
		capacity: capacity,
		logger:   logger,
		stop:     make(chan struct{}),
		now:      time.Now,
	}

	go c.sweep()

	return c
}

// Put stores the verifier and requested scopes under the given state token.
// State tokens carry enough entropy that collisions do not happen in
// practice; if one does, last write wins.
func (c *StateCache) Put(state, verifier string, scopes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[state]; exists {
		c.logger.Warn("overwriting existing authorization state")
	}

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	c.entries[state] = stateEntry{verifier: verifier, scopes: scopes, createdAt: c.now()}
	c.logger.Debug("saved authorization state", "pending", len(c.entries))
}

// Take atomically looks up and removes the pending login for a state token,
// returning its verifier and requested scopes. Returns ErrInvalidState if
// the state was never stored, already consumed, or has outlived the TTL.
// Exactly one of two concurrent callers presenting the same state can
// succeed.
func (c *StateCache) Take(state string) (string, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[state]
	if !exists {
		return "", nil, ErrInvalidState
	}

	// Consume the entry regardless of age; an expired state is as dead as
	// an unknown one.
	delete(c.entries, state)

	if c.now().Sub(entry.createdAt) > c.ttl {
		c.logger.Debug("authorization state expired", "age", c.now().Sub(entry.createdAt))
		return "", nil, ErrInvalidState
	}

	return entry.verifier, entry.scopes, nil
}

// Len returns the number of pending entries.
func (c *StateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep goroutine.
func (c *StateCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// evictLocked makes room for one more entry: first drop everything expired,
// then, if still at capacity, drop the oldest pending entry.
// Caller must hold c.mu.
func (c *StateCache) evictLocked() {
	now := c.now()
	for state, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, state)
		}
	}
	if len(c.entries) < c.capacity {
		return
	}

	var oldestState string
	var oldestAt time.Time
	for state, entry := range c.entries {
		if oldestState == "" || entry.createdAt.Before(oldestAt) {
			oldestState = state
			oldestAt = entry.createdAt
		}
	}
	if oldestState != "" {
		delete(c.entries, oldestState)
		c.logger.Warn("state cache at capacity, evicted oldest pending login",
			"capacity", c.capacity)
	}
}

// sweep periodically removes expired entries.
func (c *StateCache) sweep() {
	ticker := time.NewTicker(stateSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *StateCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	deleted := 0
	for state, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, state)
			deleted++
		}
	}

	if deleted > 0 {
		c.logger.Debug("cleaned up expired authorization states", "deleted", deleted)
	}
}
