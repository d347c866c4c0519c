package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// A named quota tier. Plans are seeded at startup and treated as
// read-only reference data afterwards.
type Plan struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name         string    `gorm:"uniqueIndex;not null" json:"name"`
	LimitPerHour int       `gorm:"not null" json:"limit_per_hour"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	return nil
}

func (Plan) TableName() string {
	return "plans"
}
