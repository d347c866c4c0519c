package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/storage"
)

func redisStore(t *testing.T) *RedisBucketStore {
	t.Helper()

	client, err := storage.NewRedis("localhost:6379", "", 0)
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisBucketStore(client)
}

func TestRedisBucketStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := redisStore(t)

	t.Run("BasicFlow", func(t *testing.T) {
		userID := uuid.New()
		supplier := staticSupplier(3)

		result, err := store.Consume(ctx, userID, 1, supplier)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if !result.Allowed {
			t.Error("Expected first request to be allowed")
		}
		if result.RemainingTokens != 2 {
			t.Errorf("Expected 2 remaining, got %d", result.RemainingTokens)
		}

		store.Consume(ctx, userID, 1, supplier)
		store.Consume(ctx, userID, 1, supplier)

		result, err = store.Consume(ctx, userID, 1, supplier)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if result.Allowed {
			t.Error("Expected fourth request to be denied")
		}
		if result.NanosToRefill <= 0 {
			t.Error("Expected positive refill wait on denial")
		}
	})

	t.Run("EvictRebuildsBucket", func(t *testing.T) {
		userID := uuid.New()

		store.Consume(ctx, userID, 1, staticSupplier(20))

		if err := store.Evict(ctx, userID); err != nil {
			t.Fatalf("Evict failed: %v", err)
		}

		result, err := store.Consume(ctx, userID, 1, staticSupplier(40))
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if result.RemainingTokens != 39 {
			t.Errorf("Expected fresh bucket at new capacity, got %d remaining", result.RemainingTokens)
		}
	})

	t.Run("SharedStateAcrossInstances", func(t *testing.T) {
		userID := uuid.New()
		supplier := staticSupplier(1)

		// Two stores simulate two gateway instances sharing the backend.
		storeA := store
		storeB := redisStore(t)

		result, err := storeA.Consume(ctx, userID, 1, supplier)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if !result.Allowed {
			t.Fatal("Expected instance A to consume the only token")
		}

		result, err = storeB.Consume(ctx, userID, 1, supplier)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if result.Allowed {
			t.Error("Instance B should see the token consumed by instance A")
		}
	})

	t.Run("ConcurrentConsumptionIsExact", func(t *testing.T) {
		userID := uuid.New()
		supplier := staticSupplier(25)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		for i := 0; i < 50; i++ {
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

		if allowed != 25 {
			t.Errorf("Expected exactly 25 allowed consumptions, got %d", allowed)
		}
	})
}
