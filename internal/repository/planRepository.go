package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/storage"
	"gorm.io/gorm"
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *storage.Postgres) *PlanRepository {
	return &PlanRepository{db: db.DB}
}

// Retrieves all plans ordered by hourly limit
func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).
		Order("limit_per_hour ASC").
		Find(&plans).Error

	return plans, err
}

// Retrieves a plan by id
func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &plan, err
}

// Reports whether a plan with the given id exists
func (r *PlanRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("id = ?", id).
		Count(&count).Error

	return count > 0, err
}

// Inserts the default plan tiers if they are not already present.
// Called once at process start; a failure here is fatal to startup.
func (r *PlanRepository) Seed(ctx context.Context) error {
	tiers := []models.Plan{
		{Name: "FREE", LimitPerHour: 20},
		{Name: "BUSINESS", LimitPerHour: 40},
		{Name: "PROFESSIONAL", LimitPerHour: 100},
	}

	for _, tier := range tiers {
		var count int64
		err := r.db.WithContext(ctx).
			Model(&models.Plan{}).
			Where("name = ?", tier.Name).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check plan %s: %w", tier.Name, err)
		}
		if count > 0 {
			continue
		}

		if err := r.db.WithContext(ctx).Create(&tier).Error; err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", tier.Name, err)
		}

		log.Printf("Seeded plan %s with %d requests/hour", tier.Name, tier.LimitPerHour)
	}

	return nil
}
