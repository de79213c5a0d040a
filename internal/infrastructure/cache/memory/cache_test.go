package memory

import (
	"context"
	"testing"
	"time"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func TestGetReturnsStoredValueWithinTTL(t *testing.T) {
	cache := New()
	resp := &domain.RetrievalResponse{TraceID: "t1"}

	cache.Set(context.Background(), "k", resp, time.Minute)
	got, hit := cache.Get(context.Background(), "k")
	if !hit {
		t.Fatal("expected a hit within the TTL")
	}
	if got.TraceID != "t1" {
		t.Fatalf("trace id = %q, want t1", got.TraceID)
	}
}

func TestGetEvictsExpiredEntry(t *testing.T) {
	cache := New()
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	cache.Set(context.Background(), "k", &domain.RetrievalResponse{TraceID: "t1"}, time.Minute)

	current = current.Add(61 * time.Second)
	if _, hit := cache.Get(context.Background(), "k"); hit {
		t.Fatal("expected a miss after the TTL")
	}

	cache.mu.RLock()
	_, stillThere := cache.entries["k"]
	cache.mu.RUnlock()
	if stillThere {
		t.Fatal("expired entry must be evicted on access")
	}
}

func TestSetIgnoresNonPositiveTTL(t *testing.T) {
	cache := New()
	cache.Set(context.Background(), "k", &domain.RetrievalResponse{TraceID: "t1"}, 0)
	if _, hit := cache.Get(context.Background(), "k"); hit {
		t.Fatal("zero TTL must not store anything")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	cache := New()
	cache.Set(context.Background(), "k", &domain.RetrievalResponse{TraceID: "t1"}, time.Minute)
	cache.Delete(context.Background(), "k")
	if _, hit := cache.Get(context.Background(), "k"); hit {
		t.Fatal("expected a miss after delete")
	}
}
