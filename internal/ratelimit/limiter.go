package ratelimit

import (
	"context"

	"github.com/google/uuid"
)

// Glues configuration resolution to bucket consumption. Owns no state
// of its own; the bucket store holds everything.
type Limiter struct {
	store    BucketStore
	resolver ConfigResolver
}

func NewLimiter(store BucketStore, resolver ConfigResolver) *Limiter {
	return &Limiter{
		store:    store,
		resolver: resolver,
	}
}

// Attempts to consume one token from the user's bucket, lazily
// initializing it from the user's active plan on first use.
func (l *Limiter) CheckAndConsume(ctx context.Context, userID uuid.UUID) (ConsumptionResult, error) {
	return l.store.Consume(ctx, userID, 1, func(ctx context.Context) (BucketConfig, error) {
		return l.resolver.ResolveLimit(ctx, userID)
	})
}

// Discards the user's cached bucket state. Invoked after a plan change
// commits, never before, so the next consumption rebuilds the bucket
// against the new plan's limits.
func (l *Limiter) Reset(ctx context.Context, userID uuid.UUID) error {
	return l.store.Evict(ctx, userID)
}
