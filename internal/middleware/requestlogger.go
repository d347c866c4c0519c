package middleware

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/models"
	"github.com/quotagate/quotagate/internal/repository"
)

// Persists request records asynchronously in batches so the hot path
// never waits on the database.
type RequestRecorder struct {
	logs    *repository.RequestLogRepository
	entries chan models.RequestLog
	done    chan struct{}
}

func NewRequestRecorder(logs *repository.RequestLogRepository, bufferSize int) *RequestRecorder {
	r := &RequestRecorder{
		logs:    logs,
		entries: make(chan models.RequestLog, bufferSize),
		done:    make(chan struct{}),
	}

	go r.worker()

	return r
}

func (r *RequestRecorder) worker() {
	const batchSize = 100

	batch := make([]models.RequestLog, 0, batchSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.logs.CreateBatch(ctx, batch); err != nil {
			log.Printf("Failed to insert request logs: %v", err)
		}
		cancel()

		batch = batch[:0]
	}

	for {
		select {
		case entry := <-r.entries:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			// Drain whatever is queued before shutting down.
			for {
				select {
				case entry := <-r.entries:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Flushes pending records and stops the background worker.
func (r *RequestRecorder) Stop() {
	close(r.done)
}

// Records every request for the analytics endpoints
func (r *RequestRecorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		var userID *uuid.UUID
		if id, ok := AuthenticatedUserID(c); ok {
			userID = &id
		}

		entry := models.RequestLog{
			Timestamp:      start,
			UserID:         userID,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		select {
		case r.entries <- entry:
		default:
			// Channel full, drop the entry rather than block the request.
			log.Println("Request log channel full, skipping entry")
		}
	}
}
