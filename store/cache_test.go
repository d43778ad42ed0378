package store

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache[string] {
	t.Helper()
	c, err := New[string](opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestCacheConstructionErrors(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"zero ttl", Options{TTL: 0, MaxEntries: 10}},
		{"negative ttl", Options{TTL: -time.Second, MaxEntries: 10}},
		{"zero capacity", Options{TTL: time.Hour, MaxEntries: 0}},
		{"negative capacity", Options{TTL: time.Hour, MaxEntries: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New[string](tc.opts); err == nil {
				t.Error("expected construction error, got nil")
			}
		})
	}
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 10})

	c.Put("h1", "payload")
	got, ok := c.Get("h1")
	if !ok {
		t.Fatal("expected hit, got miss")
	}
	if got != "payload" {
		t.Errorf("expected %q, got %q", "payload", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown handle")
	}
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 2})

	c.Put("A", "a")
	c.Put("B", "b")
	c.Put("C", "c")

	handles := c.List()
	if len(handles) != 2 {
		t.Fatalf("expected 2 live handles, got %d: %v", len(handles), handles)
	}
	if handles[0] != "B" || handles[1] != "C" {
		t.Errorf("expected [B C], got %v", handles)
	}
	if _, ok := c.Get("A"); ok {
		t.Error("expected oldest entry A to be evicted")
	}
}

func TestCacheCapacityInvariant(t *testing.T) {
	const max, extra = 5, 3
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: max})

	for i := 0; i < max+extra; i++ {
		c.Put(fmt.Sprintf("h%d", i), "v")
	}

	handles := c.List()
	if len(handles) != max {
		t.Fatalf("expected %d live handles, got %d", max, len(handles))
	}
	// The `extra` oldest-inserted entries must be gone.
	for i := 0; i < extra; i++ {
		if _, ok := c.Get(fmt.Sprintf("h%d", i)); ok {
			t.Errorf("expected h%d to be evicted", i)
		}
	}
	for i := extra; i < max+extra; i++ {
		if _, ok := c.Get(fmt.Sprintf("h%d", i)); !ok {
			t.Errorf("expected h%d to survive", i)
		}
	}
}

func TestCacheReadsDoNotAffectEviction(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 2})

	c.Put("A", "a")
	c.Put("B", "b")

	// Touch A repeatedly; eviction order is insertion time, not access
	// time, so A is still the one evicted.
	for i := 0; i < 5; i++ {
		if _, ok := c.Get("A"); !ok {
			t.Fatal("expected hit on A")
		}
	}

	c.Put("C", "c")
	if _, ok := c.Get("A"); ok {
		t.Error("expected A evicted despite recent reads")
	}
	if _, ok := c.Get("B"); !ok {
		t.Error("expected B to survive")
	}
}

func TestCacheTTLBoundary(t *testing.T) {
	const ttl = time.Minute
	c := newTestCache(t, Options{TTL: ttl, MaxEntries: 10})

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("h", "v")

	c.now = func() time.Time { return base.Add(ttl - time.Millisecond) }
	if _, ok := c.Get("h"); !ok {
		t.Error("expected hit just before ttl")
	}

	c.now = func() time.Time { return base.Add(ttl + time.Millisecond) }
	if _, ok := c.Get("h"); ok {
		t.Error("expected miss just after ttl")
	}

	// Lazy expiry removed the entry; it never re-enters live.
	c.now = func() time.Time { return base }
	if _, ok := c.Get("h"); ok {
		t.Error("expected removed entry to stay gone")
	}
}

func TestCacheListExcludesExpired(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Minute, MaxEntries: 10})

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("old", "v")

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Put("fresh", "v")

	// "old" is logically expired even though no sweep has run.
	c.now = func() time.Time { return base.Add(70 * time.Second) }
	handles := c.List()
	if len(handles) != 1 || handles[0] != "fresh" {
		t.Errorf("expected [fresh], got %v", handles)
	}
}

func TestCacheSweepAgreesWithLazyExpiry(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Minute, MaxEntries: 10})

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("a", "v")
	c.Put("b", "v")

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.sweep()

	if got := c.Len(); got != 0 {
		t.Errorf("expected sweep to remove all expired entries, have %d", got)
	}
}

func TestCacheRemoveIdempotent(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 10})

	c.Put("h", "v")
	if !c.Remove("h") {
		t.Error("expected first remove to report true")
	}
	if c.Remove("h") {
		t.Error("expected second remove to report false")
	}
	if c.Remove("never-existed") {
		t.Error("expected remove of unknown handle to report false")
	}
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 10})

	c.Put("a", "v")
	c.Put("b", "v")
	c.Clear()

	if got := len(c.List()); got != 0 {
		t.Errorf("expected empty cache after clear, have %d entries", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
}

func TestCacheRePutLiveHandleIsNoOp(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 10})

	c.Put("h", "first")
	c.Put("h", "second")

	got, ok := c.Get("h")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "first" {
		t.Errorf("entries are set once; expected %q, got %q", "first", got)
	}
	if n := len(c.List()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestCacheStopIdempotent(t *testing.T) {
	c := newTestCache(t, Options{TTL: time.Hour, MaxEntries: 10, SweepInterval: time.Millisecond})
	c.Stop()
	c.Stop()
}

func TestGenerateHandleUniqueness(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		h := GenerateHandle()
		if seen[h] {
			t.Fatalf("duplicate handle after %d generations: %s", i, h)
		}
		seen[h] = true
	}
}

func TestAttachmentHandleDeterministic(t *testing.T) {
	h1 := AttachmentHandle("msg-1", "att-9")
	h2 := AttachmentHandle("msg-1", "att-9")
	if h1 != h2 {
		t.Errorf("expected identical handles, got %q and %q", h1, h2)
	}
	if h1 != "msg-1:att-9" {
		t.Errorf("expected composite %q, got %q", "msg-1:att-9", h1)
	}

	parent, item, ok := SplitAttachmentHandle(h1)
	if !ok || parent != "msg-1" || item != "att-9" {
		t.Errorf("split returned (%q, %q, %v)", parent, item, ok)
	}

	if _, _, ok := SplitAttachmentHandle("nocolon"); ok {
		t.Error("expected split failure for non-composite handle")
	}
}
