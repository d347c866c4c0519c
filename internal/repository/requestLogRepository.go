package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/storage"
	"gorm.io/gorm"
)

type RequestLogRepository struct {
	db *gorm.DB
}

func NewRequestLogRepository(db *storage.Postgres) *RequestLogRepository {
	return &RequestLogRepository{db: db.DB}
}

// Inserts multiple request logs (for batch insertion)
func (r *RequestLogRepository) CreateBatch(ctx context.Context, logs []models.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(&logs).Error
}

// Counts a user's requests in a time range
func (r *RequestLogRepository) CountByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("user_id = ? AND timestamp BETWEEN ? AND ?", userID, from, to).
		Count(&count).Error

	return count, err
}

// Counts a user's requests with a status code in [min, max]
func (r *RequestLogRepository) CountByUserAndStatusRange(ctx context.Context, userID uuid.UUID, minStatus, maxStatus int, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("user_id = ? AND status_code BETWEEN ? AND ? AND timestamp BETWEEN ? AND ?",
			userID, minStatus, maxStatus, from, to).
		Count(&count).Error

	return count, err
}

// Calculates a user's average response time in a time range
func (r *RequestLogRepository) AverageResponseTime(ctx context.Context, userID uuid.UUID, from, to time.Time) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&models.RequestLog{}).
		Where("user_id = ? AND timestamp BETWEEN ? AND ?", userID, from, to).
		Select("AVG(response_time_ms)").
		Scan(&avg).Error

	if avg == nil {
		return 0, err
	}

	return *avg, err
}

// Returns a user's most frequently accessed paths
func (r *RequestLogRepository) TopPaths(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]PathCount, error) {
	var results []PathCount
	err := r.db.WithContext(ctx).
		Model(&models.RequestLog{}).
		Select("path, COUNT(*) as count").
		Where("user_id = ? AND timestamp BETWEEN ? AND ?", userID, from, to).
		Group("path").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// Deletes logs older than the specified time
func (r *RequestLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.RequestLog{})

	return result.RowsAffected, result.Error
}
