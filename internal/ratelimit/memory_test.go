package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func staticSupplier(capacity int64) ConfigSupplier {
	return func(ctx context.Context) (BucketConfig, error) {
		return BucketConfig{Capacity: capacity, RefillPerHour: capacity}, nil
	}
}

func TestMemoryBucketStore_InitializesFull(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBucketStore()
	userID := uuid.New()

	result, err := store.Consume(ctx, userID, 1, staticSupplier(20))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if !result.Allowed {
		t.Error("Expected first request to be allowed")
	}
	if result.RemainingTokens != 19 {
		t.Errorf("Expected 19 remaining tokens, got %d", result.RemainingTokens)
	}
}

func TestMemoryBucketStore_Exhaustion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBucketStore()
	userID := uuid.New()
	supplier := staticSupplier(5)

	for i := 0; i < 5; i++ {
		result, err := store.Consume(ctx, userID, 1, supplier)
		if err != nil {
			t.Fatalf("Consume %d failed: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("Request %d was unexpectedly denied", i)
		}
	}

	result, err := store.Consume(ctx, userID, 1, supplier)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected request after exhaustion to be denied")
	}
	if result.RemainingTokens != 0 {
		t.Errorf("Expected 0 remaining tokens, got %d", result.RemainingTokens)
	}
	if result.NanosToRefill <= 0 {
		t.Error("Expected positive refill wait on denial")
	}
}

func TestMemoryBucketStore_IntervalRefill(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBucketStore()
	userID := uuid.New()
	supplier := staticSupplier(3)

	current := time.Now()
	store.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		store.Consume(ctx, userID, 1, supplier)
	}

	result, _ := store.Consume(ctx, userID, 1, supplier)
	if result.Allowed {
		t.Fatal("Expected denial before refill")
	}

	// Just short of the refill boundary nothing changes.
	current = current.Add(time.Hour - time.Second)
	result, _ = store.Consume(ctx, userID, 1, supplier)
	if result.Allowed {
		t.Error("Expected denial just before the hour boundary")
	}

	// Crossing the boundary snaps the bucket back to capacity.
	current = current.Add(2 * time.Second)
	result, err := store.Consume(ctx, userID, 1, supplier)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected request after refill to be allowed")
	}
	if result.RemainingTokens != 2 {
		t.Errorf("Expected 2 remaining tokens after refill, got %d", result.RemainingTokens)
	}
}

func TestMemoryBucketStore_EvictRestoresCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBucketStore()
	userID := uuid.New()

	store.Consume(ctx, userID, 1, staticSupplier(10))
	store.Consume(ctx, userID, 1, staticSupplier(10))

	if err := store.Evict(ctx, userID); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}

	// A new configuration applies after eviction, as it would on a
	// plan change.
	result, err := store.Consume(ctx, userID, 1, staticSupplier(40))
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if result.RemainingTokens != 39 {
		t.Errorf("Expected fresh bucket with 39 remaining, got %d", result.RemainingTokens)
	}
}

func TestMemoryBucketStore_ConcurrentConsumption(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBucketStore()
	userID := uuid.New()
	supplier := staticSupplier(50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Consume(ctx, userID, 1, supplier)
			if err != nil {
				t.Errorf("Consume failed: %v", err)
				return
			}
			if result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("Expected exactly 50 allowed consumptions, got %d", allowed)
	}
}
