package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type bucketState struct {
	tokens        int64
	lastRefill    time.Time
	capacity      int64
	refillPerHour int64
}

// A process-local BucketStore. Only valid when a single gateway
// instance runs: the mutex serializes consumers within this process,
// which is not enough once instances scale horizontally. Used as a
// development fallback and in tests.
type MemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*bucketState
	now     func() time.Time
}

func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{
		buckets: make(map[uuid.UUID]*bucketState),
		now:     time.Now,
	}
}

// The supplier runs under the store mutex. That stalls other users
// during a cache-miss lookup, which is tolerable for the
// single-instance scenarios this store exists for.
func (s *MemoryBucketStore) Consume(ctx context.Context, userID uuid.UUID, cost int64, supplier ConfigSupplier) (ConsumptionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	state, exists := s.buckets[userID]
	if !exists {
		config, err := supplier(ctx)
		if err != nil {
			return ConsumptionResult{}, err
		}

		state = &bucketState{
			tokens:        config.Capacity,
			lastRefill:    now,
			capacity:      config.Capacity,
			refillPerHour: config.RefillPerHour,
		}
		s.buckets[userID] = state
	}

	elapsed := now.Sub(state.lastRefill)
	if elapsed >= time.Hour {
		steps := int64(elapsed / time.Hour)
		state.tokens = min64(state.tokens+steps*state.refillPerHour, state.capacity)
		state.lastRefill = state.lastRefill.Add(time.Duration(steps) * time.Hour)
	}

	if state.tokens >= cost {
		state.tokens -= cost
		return ConsumptionResult{
			Allowed:         true,
			RemainingTokens: state.tokens,
		}, nil
	}

	wait := state.lastRefill.Add(time.Hour).Sub(now)
	return ConsumptionResult{
		Allowed:         false,
		RemainingTokens: state.tokens,
		NanosToRefill:   wait.Nanoseconds(),
	}, nil
}

func (s *MemoryBucketStore) Evict(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, userID)
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
