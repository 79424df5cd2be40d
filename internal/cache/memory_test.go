package cache

import (
	"context"
	"testing"
	"time"
)

func newMemoryTestCache(t *testing.T, size int, ttl time.Duration, onEvict EvictCallback) Cache {
	t.Helper()
	c, err := New("memory", ProviderConfig{Size: size, TTL: ttl, OnEvict: onEvict})
	if err != nil {
		t.Fatalf("New memory cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_GetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newMemoryTestCache(t, 10, time.Hour, nil)

	val, ok := c.Get(ctx, "media:E:pub-a_1_VIDEO")
	if ok || val != nil {
		t.Fatalf("Expected miss, got %q/%v", val, ok)
	}

	c.Set(ctx, "media:E:pub-a_1_VIDEO", []byte(`{"media":[]}`))
	val, ok = c.Get(ctx, "media:E:pub-a_1_VIDEO")
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if string(val) != `{"media":[]}` {
		t.Fatalf("Unexpected value %q", val)
	}
}

func TestMemoryCache_Len(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newMemoryTestCache(t, 10, time.Hour, nil)

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "b", []byte("3"))

	if c.Len() != 2 {
		t.Fatalf("Expected Len 2, got %d", c.Len())
	}
	if v, _ := c.Get(ctx, "b"); string(v) != "3" {
		t.Fatalf("Expected overwritten value '3', got %q", v)
	}
}

func TestMemoryCache_SetCopiesValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newMemoryTestCache(t, 10, time.Hour, nil)

	buf := []byte("original")
	c.Set(ctx, "media:E:k1", buf)
	copy(buf, "mutated!")

	if v, _ := c.Get(ctx, "media:E:k1"); string(v) != "original" {
		t.Fatalf("Expected cached value to survive caller mutation, got %q", v)
	}
}

func TestMemoryCache_Eviction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var evicted []string
	c := newMemoryTestCache(t, 2, time.Hour, func(key string, _ []byte) {
		evicted = append(evicted, key)
	})

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "c", []byte("3"))

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("Expected eviction of 'a', got %v", evicted)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("Evicted key 'a' should not be present")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newMemoryTestCache(t, 10, 50*time.Millisecond, nil)

	c.Set(ctx, "catalog:http://feed", []byte("gz"))
	time.Sleep(150 * time.Millisecond)

	if _, ok := c.Get(ctx, "catalog:http://feed"); ok {
		t.Fatal("Expected entry to expire")
	}
}

func TestMemoryCache_ZeroSizeUsesDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newMemoryTestCache(t, 0, time.Hour, nil)

	for _, k := range []string{"a", "b", "c"} {
		c.Set(ctx, k, []byte(k))
	}
	if c.Len() != 3 {
		t.Fatalf("Expected Len 3, got %d", c.Len())
	}
}
