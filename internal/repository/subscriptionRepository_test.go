package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *storage.Postgres {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	store := &storage.Postgres{DB: db}
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return store
}

func seedUserAndPlans(t *testing.T, db *storage.Postgres) (uuid.UUID, []models.Plan) {
	t.Helper()

	ctx := context.Background()

	user := models.User{Email: "tenant@example.com", PasswordHash: "x"}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if err := NewPlanRepository(db).Seed(ctx); err != nil {
		t.Fatalf("Failed to seed plans: %v", err)
	}

	plans, err := NewPlanRepository(db).List(ctx)
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("Expected 3 seeded plans, got %d", len(plans))
	}

	return user.ID, plans
}

func countActive(t *testing.T, db *storage.Postgres, userID uuid.UUID) int64 {
	t.Helper()

	var count int64
	err := db.DB.Model(&models.Subscription{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		t.Fatalf("Failed to count active subscriptions: %v", err)
	}

	return count
}

func TestSubscriptionRepository_SingleActiveInvariant(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	userID, plans := seedUserAndPlans(t, db)
	repo := NewSubscriptionRepository(db)

	// Walk the user through every plan; after each swap exactly one
	// row may be active.
	for _, plan := range plans {
		if err := repo.DeactivateCurrentPlan(ctx, userID); err != nil {
			t.Fatalf("DeactivateCurrentPlan failed: %v", err)
		}
		if _, err := repo.Create(ctx, userID, plan.ID); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if got := countActive(t, db, userID); got != 1 {
			t.Fatalf("Expected exactly 1 active subscription after switching to %s, got %d", plan.Name, got)
		}
	}

	// History is retained: one row per plan switched to.
	history, err := repo.History(ctx, userID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != len(plans) {
		t.Errorf("Expected %d history rows, got %d", len(plans), len(history))
	}
}

func TestSubscriptionRepository_DeactivateWithoutActiveIsNoop(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	userID, _ := seedUserAndPlans(t, db)
	repo := NewSubscriptionRepository(db)

	if err := repo.DeactivateCurrentPlan(ctx, userID); err != nil {
		t.Errorf("Expected deactivation with no active subscription to be a no-op, got %v", err)
	}
}

func TestSubscriptionRepository_FindActiveByUserID(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	userID, plans := seedUserAndPlans(t, db)
	repo := NewSubscriptionRepository(db)

	subscription, err := repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("FindActiveByUserID failed: %v", err)
	}
	if subscription != nil {
		t.Fatal("Expected no active subscription for a fresh user")
	}

	if _, err := repo.Create(ctx, userID, plans[0].ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	subscription, err = repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("FindActiveByUserID failed: %v", err)
	}
	if subscription == nil {
		t.Fatal("Expected an active subscription")
	}
	if subscription.Plan.ID != plans[0].ID {
		t.Error("Expected the plan to be preloaded on the active subscription")
	}
	if subscription.Plan.LimitPerHour != plans[0].LimitPerHour {
		t.Errorf("Expected plan limit %d, got %d", plans[0].LimitPerHour, subscription.Plan.LimitPerHour)
	}
}

func TestSubscriptionRepository_IsPlanActive(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	userID, plans := seedUserAndPlans(t, db)
	repo := NewSubscriptionRepository(db)

	active, err := repo.IsPlanActive(ctx, userID, plans[0].ID)
	if err != nil {
		t.Fatalf("IsPlanActive failed: %v", err)
	}
	if active {
		t.Error("Expected no active plan for a fresh user")
	}

	repo.Create(ctx, userID, plans[0].ID)

	active, _ = repo.IsPlanActive(ctx, userID, plans[0].ID)
	if !active {
		t.Error("Expected the created plan to be active")
	}

	active, _ = repo.IsPlanActive(ctx, userID, plans[1].ID)
	if active {
		t.Error("Expected a different plan to not be active")
	}
}

func TestPlanRepository_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewPlanRepository(db)

	if err := repo.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := repo.Seed(ctx); err != nil {
		t.Fatalf("Second seed failed: %v", err)
	}

	plans, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(plans) != 3 {
		t.Errorf("Expected 3 plans after double seed, got %d", len(plans))
	}

	// List is ordered by hourly limit.
	for i := 1; i < len(plans); i++ {
		if plans[i].LimitPerHour < plans[i-1].LimitPerHour {
			t.Error("Expected plans ordered by ascending hourly limit")
		}
	}
}
