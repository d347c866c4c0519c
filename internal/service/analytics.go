package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/repository"
)

type AnalyticsService struct {
	logs *repository.RequestLogRepository
}

func NewAnalyticsService(logs *repository.RequestLogRepository) *AnalyticsService {
	return &AnalyticsService{logs: logs}
}

// Holds a user's usage summary for a time range
type UsageSummary struct {
	TotalRequests   int64                  `json:"total_requests"`
	AvgResponseTime float64                `json:"avg_response_time_ms"`
	SuccessRate     float64                `json:"success_rate"`
	ClientErrorRate float64                `json:"client_error_rate"`
	ServerErrorRate float64                `json:"server_error_rate"`
	RateLimitedRate float64                `json:"rate_limited_rate"`
	TopPaths        []repository.PathCount `json:"top_paths"`
}

// Retrieves the usage summary for a single user
func (s *AnalyticsService) GetUserSummary(ctx context.Context, userID uuid.UUID, from, to time.Time) (*UsageSummary, error) {
	summary := &UsageSummary{}

	total, err := s.logs.CountByUser(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = total

	if total == 0 {
		return summary, nil
	}

	avg, err := s.logs.AverageResponseTime(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseTime = avg

	clientErrors, err := s.logs.CountByUserAndStatusRange(ctx, userID, 400, 499, from, to)
	if err != nil {
		return nil, err
	}

	serverErrors, err := s.logs.CountByUserAndStatusRange(ctx, userID, 500, 599, from, to)
	if err != nil {
		return nil, err
	}

	rateLimited, err := s.logs.CountByUserAndStatusRange(ctx, userID, 429, 429, from, to)
	if err != nil {
		return nil, err
	}

	summary.ClientErrorRate = rate(clientErrors, total)
	summary.ServerErrorRate = rate(serverErrors, total)
	summary.RateLimitedRate = rate(rateLimited, total)
	summary.SuccessRate = 100 - rate(clientErrors+serverErrors, total)

	topPaths, err := s.logs.TopPaths(ctx, userID, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopPaths = topPaths

	return summary, nil
}

// Deletes logs older than the specified retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.logs.DeleteOlderThan(ctx, cutoff)
}

func rate(part, total int64) float64 {
	return (float64(part) / float64(total)) * 100
}
