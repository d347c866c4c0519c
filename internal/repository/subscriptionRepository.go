package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/storage"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *storage.Postgres) *SubscriptionRepository {
	return &SubscriptionRepository{db: db.DB}
}

// Returns a copy of the repository bound to the given transaction.
func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

// Retrieves the user's single active subscription with its plan.
// Returns (nil, nil) when the user has no active subscription.
func (r *SubscriptionRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&subscription).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &subscription, err
}

// Reports whether the given plan is the user's currently active plan
func (r *SubscriptionRepository) IsPlanActive(ctx context.Context, userID, planID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND plan_id = ? AND is_active = ?", userID, planID, true).
		Count(&count).Error

	return count > 0, err
}

// Flips is_active to false on whatever row currently holds it for the
// user. Not an error if no active row exists.
func (r *SubscriptionRepository) DeactivateCurrentPlan(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}

// Inserts a new active subscription row for the user
func (r *SubscriptionRepository) Create(ctx context.Context, userID, planID uuid.UUID) (*models.Subscription, error) {
	subscription := models.Subscription{
		UserID:   userID,
		PlanID:   planID,
		IsActive: true,
	}

	if err := r.db.WithContext(ctx).Create(&subscription).Error; err != nil {
		return nil, err
	}

	return &subscription, nil
}

// Retrieves the full subscription history for a user, newest first
func (r *SubscriptionRepository) History(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subscriptions).Error

	return subscriptions, err
}
