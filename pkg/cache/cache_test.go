package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(4, time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("Get(a)=%v,%v, want 1,true", v, ok)
	}

	c.Set("a", 2)
	v, _ = c.Get("a")
	if v.(int) != 2 {
		t.Fatalf("overwrite failed, got %v", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d, want 1", c.Len())
	}
}

func TestCapacityEviction(t *testing.T) {
	c := New(3, time.Hour)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	if c.Len() != 3 {
		t.Fatalf("Len=%d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatalf("k0 should be evicted")
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatalf("k1 should be evicted")
	}
	if _, ok := c.Get("k4"); !ok {
		t.Fatalf("k4 should still be present")
	}
}

func TestLRUOrder(t *testing.T) {
	c := New(2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)

	// 访问 a 使其变为最近使用，插入 c 应淘汰 b
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should be evicted")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(8, time.Hour)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return current })

	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("fresh entry should hit")
	}

	current = current.Add(2 * time.Hour)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry should miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed on read, Len=%d", c.Len())
	}
}
