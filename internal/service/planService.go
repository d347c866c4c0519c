package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/ratelimit"
	"github.com/quotagate/quotagate/internal/repository"
	"github.com/quotagate/quotagate/internal/storage"
	"gorm.io/gorm"
)

type PlanService struct {
	db            *storage.Postgres
	plans         *repository.PlanRepository
	subscriptions *repository.SubscriptionRepository
	limiter       *ratelimit.Limiter
}

func NewPlanService(db *storage.Postgres, plans *repository.PlanRepository, subscriptions *repository.SubscriptionRepository, limiter *ratelimit.Limiter) *PlanService {
	return &PlanService{
		db:            db,
		plans:         plans,
		subscriptions: subscriptions,
		limiter:       limiter,
	}
}

// Retrieves all available plans
func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	return s.plans.List(ctx)
}

// Switches the user's subscription to the given plan.
//
// If the target plan is already the user's active plan nothing is
// written and the cached bucket is left untouched. Otherwise the
// current subscription is deactivated and the new one inserted in a
// single transaction, and the user's bucket state is evicted after the
// swap commits so the next request rebuilds it against the new limit.
func (s *PlanService) Update(ctx context.Context, userID, planID uuid.UUID) error {
	planExists, err := s.plans.ExistsByID(ctx, planID)
	if err != nil {
		return err
	}
	if !planExists {
		return ErrInvalidPlan
	}

	alreadyActive, err := s.subscriptions.IsPlanActive(ctx, userID, planID)
	if err != nil {
		return err
	}
	if alreadyActive {
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		subscriptions := s.subscriptions.WithTx(tx)

		if err := subscriptions.DeactivateCurrentPlan(ctx, userID); err != nil {
			return err
		}

		_, err := subscriptions.Create(ctx, userID, planID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.limiter.Reset(ctx, userID); err != nil {
		// The swap is committed; a stale bucket self-corrects within an
		// hour, but surface the failure so callers can retry eviction.
		return fmt.Errorf("plan updated but bucket eviction failed: %w", err)
	}

	log.Printf("User %s switched to plan %s", userID, planID)

	return nil
}

// Retrieves the user's subscription history, newest first
func (s *PlanService) History(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	return s.subscriptions.History(ctx, userID)
}
