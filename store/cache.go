// Package store provides the handle-indexed result cache.
//
// Two logical caches are built on the same engine: a search cache holding
// full record sets under randomly generated handles, and an attachment cache
// holding blobs under deterministic composite handles. Entries are set once
// and read many times; they leave the cache by explicit clear, TTL expiry
// (lazy on read plus a periodic sweep), or capacity eviction of the
// oldest-by-insertion entry.
//
// Information Hiding:
// - Eviction bookkeeping (insertion order) hidden behind Put/Get/List
// - Expiry is a single predicate shared by reads, List, and the sweep
// - Sweep goroutine lifecycle hidden behind Stop
package store

import (
	"fmt"
	"sync"
	"time"
)

// Options configures a cache instance.
type Options struct {
	TTL           time.Duration // age after which an entry is expired
	MaxEntries    int           // capacity; oldest insertion evicted beyond this
	SweepInterval time.Duration // background cleanup cadence; 0 disables the sweep
}

// DefaultOptions returns the production defaults: 24h TTL, 100 entries,
// 5 minute sweep.
func DefaultOptions() Options {
	return Options{
		TTL:           24 * time.Hour,
		MaxEntries:    100,
		SweepInterval: 5 * time.Minute,
	}
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a TTL and capacity bounded store keyed by opaque handles.
// Eviction is strictly by insertion time: reads do not refresh an entry's
// position, so the entry evicted at capacity is always the one inserted
// earliest. This is deliberately weaker than access-time LRU.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   []string // handles in insertion order, oldest first

	ttl time.Duration
	max int
	now func() time.Time // overridable in tests

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a cache and starts its background sweep. A non-positive TTL or
// capacity is a construction-time error, not a runtime condition.
func New[V any](opts Options) (*Cache[V], error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("store: ttl must be positive, got %v", opts.TTL)
	}
	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("store: max entries must be positive, got %d", opts.MaxEntries)
	}

	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	}

	return c, nil
}

// isExpired is the single liveness predicate. Lazy expiry on read, List
// filtering, and the background sweep all delegate here so they can never
// disagree about whether an entry is live.
func (c *Cache[V]) isExpired(e *entry[V], now time.Time) bool {
	return now.Sub(e.insertedAt) > c.ttl
}

// Put stores value under handle. At capacity, the oldest-by-insertion entry
// is evicted first. Re-putting a live handle is a no-op: entries are set
// once, and deterministic handles rely on that for idempotency.
func (c *Cache[V]) Put(handle string, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[handle]; ok {
		if !c.isExpired(existing, now) {
			return
		}
		c.removeLocked(handle)
	}

	for len(c.entries) >= c.max {
		c.removeLocked(c.order[0])
	}

	c.entries[handle] = &entry[V]{value: value, insertedAt: now}
	c.order = append(c.order, handle)
}

// Get returns the value for handle. An expired entry is removed and reported
// as a miss. Absence is a normal return, never an error.
func (c *Cache[V]) Get(handle string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[handle]
	if !ok {
		return zero, false
	}
	if c.isExpired(e, now) {
		c.removeLocked(handle)
		return zero, false
	}
	return e.value, true
}

// List returns all live handles in insertion order, excluding entries that
// are logically expired even if the sweep has not removed them yet.
func (c *Cache[V]) List() []string {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	handles := make([]string, 0, len(c.order))
	for _, h := range c.order {
		if e, ok := c.entries[h]; ok && !c.isExpired(e, now) {
			handles = append(handles, h)
		}
	}
	return handles
}

// Remove deletes the entry for handle. Idempotent; reports whether an entry
// was actually removed.
func (c *Cache[V]) Remove(handle string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[handle]; !ok {
		return false
	}
	c.removeLocked(handle)
	return true
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.order = c.order[:0]
}

// Len returns the number of stored entries, including any that are expired
// but not yet swept. Use List for the live view.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background sweep. The long-running server never calls
// this; it exists so tests and short-lived embeddings can clean up
// deterministically. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache[V]) removeLocked(handle string) {
	delete(c.entries, handle)
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

// sweep removes expired entries eagerly. Purely an efficiency measure: lazy
// expiry on read already guarantees correctness.
func (c *Cache[V]) sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	for h, e := range c.entries {
		if c.isExpired(e, now) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		c.removeLocked(h)
	}
}
