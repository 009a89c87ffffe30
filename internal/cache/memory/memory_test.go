package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmedrec/medrec-go/internal/cache"
	"github.com/openmedrec/medrec-go/internal/cache/memory"
)

func newCache(t *testing.T) *memory.Cache {
	t.Helper()
	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %q", got)
	}

	// The returned slice is a copy.
	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("stored value was mutated through the returned slice")
	}
}

func TestGetMissing(t *testing.T) {
	c := newCache(t)
	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
	exists, err := c.Exists(ctx, "k")
	if err != nil || exists {
		t.Errorf("expired key must not exist: %v %v", exists, err)
	}
}

func TestDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCounterWindow(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	n, resetAt, err := c.Increment(ctx, "cnt", 1, time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("first increment: %d %v", n, err)
	}
	if !resetAt.After(time.Now()) {
		t.Error("window expiry should be in the future")
	}

	n, second, err := c.Increment(ctx, "cnt", 2, time.Minute)
	if err != nil || n != 3 {
		t.Fatalf("second increment: %d %v", n, err)
	}
	// The window is fixed at creation; later increments do not extend it.
	if !second.Equal(resetAt) {
		t.Errorf("window expiry moved: %v -> %v", resetAt, second)
	}

	got, err := c.GetCount(ctx, "cnt")
	if err != nil || got != 3 {
		t.Errorf("GetCount: %d %v", got, err)
	}
}

func TestCounterExpiresAndRestarts(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if _, _, err := c.Increment(ctx, "cnt", 5, time.Nanosecond); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	got, err := c.GetCount(ctx, "cnt")
	if err != nil || got != 0 {
		t.Errorf("expired counter should read 0, got %d %v", got, err)
	}

	n, _, err := c.Increment(ctx, "cnt", 1, time.Minute)
	if err != nil || n != 1 {
		t.Errorf("expired counter should restart at delta, got %d %v", n, err)
	}
}

func TestCounterReset(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Increment(ctx, "cnt", 7, time.Minute)
	if err := c.Reset(ctx, "cnt"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	got, _ := c.GetCount(ctx, "cnt")
	if got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}
