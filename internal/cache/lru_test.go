package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLRUGetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Fatalf("overwrite failed, got %v", v)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // b is now least recently used
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestLRUExpiry(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock(clk.Now))
	c.Set("a", 1)

	clk.Advance(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a before ttl")
	}
	clk.Advance(2 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("fixed ttl should not be refreshed by Get")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on access")
	}
}

func TestLRUSlidingExpiry(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock(clk.Now), WithSlidingExpiry())
	c.Set("a", 1)

	for i := 0; i < 5; i++ {
		clk.Advance(50 * time.Second)
		if _, ok := c.Get("a"); !ok {
			t.Fatalf("iteration %d: sliding entry expired while in use", i)
		}
	}
	clk.Advance(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected idle entry to expire")
	}
}

func TestCleanExpired(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Minute, WithClock(clk.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	clk.Advance(30 * time.Second)
	c.Set("c", 3)
	clk.Advance(45 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if c.Size() != 1 {
		t.Fatalf("expected 1 left, got %d", c.Size())
	}
}

func TestManager(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Second, WithClock(clk.Now))
	c.Set("a", 1)
	clk.Advance(2 * time.Second)

	m := NewManager()
	m.Register("test", c)
	if n := m.CleanAll(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop() // second call must not panic or block
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
