package cache

import (
	"sync"
	"testing"
	"time"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stubClock) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func TestCache_SetThenGet(t *testing.T) {
	t.Parallel()

	c := New[string](0, &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	c.Set("employees-10-0-", "payload")

	got, ok := c.Get("employees-10-0-")
	if !ok {
		t.Fatal("expected cache hit right after set")
	}
	if got != "payload" {
		t.Fatalf("unexpected value: %q", got)
	}
	if c.TTL() != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", c.TTL())
	}
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int](30*time.Second, clk)
	c.Set("k", 1)

	clk.advance(29999 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit just before expiry")
	}

	clk.advance(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss once the entry is 30s old")
	}

	if c.Len() != 1 {
		t.Fatalf("expected lazy expiry to keep the entry, got len %d", c.Len())
	}
}

func TestCache_SetOverwritesTimestamp(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](10*time.Second, clk)
	c.Set("k", "old")

	clk.advance(8 * time.Second)
	c.Set("k", "new")

	clk.advance(8 * time.Second)
	got, ok := c.Get("k")
	if !ok || got != "new" {
		t.Fatalf("expected refreshed entry, got %q (hit=%t)", got, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	c := New[string](0, nil)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss after clear")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestCache_MissingKey(t *testing.T) {
	t.Parallel()

	c := New[*int](0, nil)
	got, ok := c.Get("absent")
	if ok || got != nil {
		t.Fatalf("expected absent indicator, got %v %t", got, ok)
	}
}
