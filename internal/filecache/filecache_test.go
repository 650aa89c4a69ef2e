package filecache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string](10, time.Hour, 0, 0)
	c.Set("repo-a", "value-a")

	got, ok := c.Get("repo-a")
	if !ok || got != "value-a" {
		t.Fatalf("Get() = %q, %v, want value-a, true", got, ok)
	}
}

func TestCache_MissingKey(t *testing.T) {
	c := New[string](10, time.Hour, 0, 0)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unset key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New[string](10, time.Millisecond, 0, 0)
	c.Set("repo-a", "value-a")
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("repo-a"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](2, time.Hour, 0, 0)
	c.Set("repo-a", "a")
	c.Set("repo-b", "b")
	c.Get("repo-a") // touch a, making b the LRU entry
	c.Set("repo-c", "c")

	if _, ok := c.Get("repo-b"); ok {
		t.Error("expected repo-b to have been evicted as least recently used")
	}
	if _, ok := c.Get("repo-a"); !ok {
		t.Error("expected repo-a to survive eviction")
	}
	if _, ok := c.Get("repo-c"); !ok {
		t.Error("expected repo-c to survive eviction")
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string](10, time.Hour, 0, 0)
	c.Set("repo-a", "a")
	c.Invalidate("repo-a")

	if _, ok := c.Get("repo-a"); ok {
		t.Fatal("expected entry to be gone after Invalidate")
	}
}

func TestCache_WarnFuncFiresAtRatio(t *testing.T) {
	c := New[string](2, time.Hour, 0.5, 0)
	var gotRatio float64
	var calls int
	c.WarnFunc(func(ratio float64) {
		calls++
		gotRatio = ratio
	})

	c.Set("repo-a", "a")
	if calls != 1 {
		t.Fatalf("expected warn to fire once at ratio 0.5, got %d calls", calls)
	}
	if gotRatio != 0.5 {
		t.Errorf("gotRatio = %v, want 0.5", gotRatio)
	}
}

func TestCache_WarnFuncRespectsSampleInterval(t *testing.T) {
	c := New[string](2, time.Hour, 0.5, time.Hour)
	var calls int
	c.WarnFunc(func(ratio float64) { calls++ })

	c.Set("repo-a", "a")
	c.Set("repo-b", "b")
	if calls != 1 {
		t.Fatalf("expected exactly one warn within the sample interval, got %d", calls)
	}
}

func TestWatcherPool_RespectsMaxCapacity(t *testing.T) {
	p := NewWatcherPool(0, time.Hour, func(string) {})
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for a fresh pool", p.Len())
	}
	// max of 0 means the pool accepts no watchers; Watch is a no-op, not an error.
	if err := p.Watch("/nonexistent-repo-path"); err != nil {
		t.Fatalf("Watch() with max=0 should no-op, got error: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Watch at zero capacity", p.Len())
	}
}
