package orchestrator

import (
	"testing"
	"time"
)

func TestCachePutGet(t *testing.T) {
	c := NewIdempotencyCache()
	result := ToolExecutionResult{Success: true, Output: `{"result":3}`, Tool: "calculator", TurnID: "abc123"}
	c.Put("key1", "abc123", result, time.Minute)

	entry, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.TurnID != "abc123" {
		t.Errorf("turn id = %s, want abc123", entry.TurnID)
	}
	if entry.Result.Output != result.Output {
		t.Errorf("output = %s, want %s", entry.Result.Output, result.Output)
	}

	if _, ok := c.Get("other"); ok {
		t.Error("unexpected hit for unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewIdempotencyCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("key1", "t1", ToolExecutionResult{Success: true}, time.Minute)
	if _, ok := c.Get("key1"); !ok {
		t.Fatal("entry should be live before the TTL elapses")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("key1"); ok {
		t.Fatal("entry should have expired")
	}
	// Lazy expiry removed the entry on read.
	if c.Len() != 0 {
		t.Errorf("len = %d after expiry, want 0", c.Len())
	}
}

func TestCacheNonPositiveTTLStoresNothing(t *testing.T) {
	c := NewIdempotencyCache()
	c.Put("a", "t1", ToolExecutionResult{}, 0)
	c.Put("b", "t2", ToolExecutionResult{}, -time.Second)
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := NewIdempotencyCache()
	c.Put("key", "t1", ToolExecutionResult{Output: "old"}, time.Minute)
	c.Put("key", "t2", ToolExecutionResult{Output: "new"}, time.Minute)

	entry, ok := c.Get("key")
	if !ok || entry.TurnID != "t2" || entry.Result.Output != "new" {
		t.Fatalf("expected overwritten entry, got %+v ok=%v", entry, ok)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}
