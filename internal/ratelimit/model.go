package ratelimit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Returned when bucket configuration is requested for a user without an
// active subscription. Every properly onboarded user has one, so this
// is an internal inconsistency, never silently defaulted.
var ErrNoActiveSubscription = errors.New("user has no active subscription")

// Token bucket parameters derived from a user's active plan. With the
// refill-to-full-every-hour policy both values equal the plan's hourly
// limit.
type BucketConfig struct {
	Capacity      int64
	RefillPerHour int64
}

// The outcome of a single consumption attempt.
type ConsumptionResult struct {
	Allowed         bool
	RemainingTokens int64
	// Minimum wait until the consumed amount would be available again.
	// Zero when Allowed is true.
	NanosToRefill int64
}

// Called by a bucket store on cache miss to obtain the bucket
// parameters for a user. Implementations hit the subscription store,
// so stores must invoke it only when no bucket state exists yet.
type ConfigSupplier func(ctx context.Context) (BucketConfig, error)

// Holds one bucket per user in a backend shared by all gateway
// instances. Consumption must be atomic with respect to concurrent
// callers for the same user, including first-use initialization.
type BucketStore interface {
	Consume(ctx context.Context, userID uuid.UUID, cost int64, supplier ConfigSupplier) (ConsumptionResult, error)
	Evict(ctx context.Context, userID uuid.UUID) error
}

// Resolves the bucket parameters for a user from their active plan.
type ConfigResolver interface {
	ResolveLimit(ctx context.Context, userID uuid.UUID) (BucketConfig, error)
}
