package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Maps a user to a plan. At most one row per user may be active at any
// instant; superseded rows are kept with IsActive=false, never deleted.
type Subscription struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	PlanID    uuid.UUID `gorm:"type:uuid;not null" json:"plan_id"`
	Plan      Plan      `gorm:"foreignKey:PlanID" json:"plan"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	return nil
}

func (Subscription) TableName() string {
	return "subscriptions"
}
