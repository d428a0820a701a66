package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) should miss")
	}

	c.Set("a", "1")
	c.Set("a", "2")
	if got, ok := c.Get("a"); !ok || got != "2" {
		t.Fatalf("Get(a) = %q, %v; want 2, true", got, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clock.Advance(30 * time.Second)
	if !c.Touch("b") {
		t.Fatal("Touch(b) should renew a live entry")
	}

	clock.Advance(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b was touched and should still be live")
	}

	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Touch("b") {
		t.Error("Touch on a removed entry should fail")
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprint(i), "v")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("Size() after Purge = %d, want 0", c.Size())
	}
	c.Set("x", "y")
	if got, ok := c.Get("x"); !ok || got != "y" {
		t.Fatal("cache should be usable after Purge")
	}
}

func TestManager(t *testing.T) {
	a, clockA := newTestCache(10, time.Second)
	b, clockB := newTestCache(10, time.Second)
	a.Set("1", "x")
	b.Set("1", "x")
	b.Set("2", "x")
	clockA.Advance(2 * time.Second)
	clockB.Advance(2 * time.Second)

	m := NewManager(nil, a)
	m.Register(b)
	if n := m.Sweep(); n != 3 {
		t.Fatalf("Sweep() = %d, want 3", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run() = %v, want nil on cancellation", err)
	}
}
