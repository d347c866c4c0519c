package ratelimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/repository"
)

// Derives bucket parameters from the user's active subscription. The
// plan's hourly limit becomes both capacity and refill amount, so a
// bucket starts full and snaps back to full an hour after its refill
// reference point.
type SubscriptionResolver struct {
	subscriptions *repository.SubscriptionRepository
}

func NewSubscriptionResolver(subscriptions *repository.SubscriptionRepository) *SubscriptionResolver {
	return &SubscriptionResolver{subscriptions: subscriptions}
}

func (r *SubscriptionResolver) ResolveLimit(ctx context.Context, userID uuid.UUID) (BucketConfig, error) {
	subscription, err := r.subscriptions.FindActiveByUserID(ctx, userID)
	if err != nil {
		return BucketConfig{}, fmt.Errorf("failed to look up active subscription: %w", err)
	}
	if subscription == nil {
		return BucketConfig{}, fmt.Errorf("user %s: %w", userID, ErrNoActiveSubscription)
	}

	limit := int64(subscription.Plan.LimitPerHour)
	return BucketConfig{
		Capacity:      limit,
		RefillPerHour: limit,
	}, nil
}
