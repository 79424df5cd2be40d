package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Belphemur/DualMux/internal/config"
)

func TestFactory_New_UnknownProvider(t *testing.T) {
	t.Parallel()
	if _, err := New("nonexistent", ProviderConfig{}); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestFactory_RegisteredProviders(t *testing.T) {
	t.Parallel()
	names := RegisteredProviders()
	if len(names) != 2 || names[0] != "memory" || names[1] != "redis" {
		t.Fatalf("Expected [memory redis], got %v", names)
	}
}

func TestFactory_Register_DuplicatePanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	Register("memory", newLRUCache)
}

func TestFactory_New_Redis_InvalidAddress(t *testing.T) {
	t.Parallel()
	_, err := New("redis", ProviderConfig{
		Size:         100,
		TTL:          time.Hour,
		RedisAddress: "localhost:59999",
	})
	if err == nil {
		t.Fatal("Expected error when connecting to invalid Redis address")
	}
}

func TestFromConfig_Disabled(t *testing.T) {
	t.Parallel()
	var cfg config.Config
	c, err := FromConfig(&cfg, "")
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if c != nil {
		t.Fatal("Expected nil cache when provider is empty")
	}
}

func TestFromConfig_Memory(t *testing.T) {
	t.Parallel()
	var cfg config.Config
	cfg.Cache.Provider = "memory"
	cfg.Cache.Size = 4
	cfg.Cache.TTL = "not-a-duration"

	c, err := FromConfig(&cfg, "")
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"))
	if v, ok := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Expected cached value, got %q/%v", v, ok)
	}
}
