package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quotagate/quotagate/internal/ratelimit"
)

// Admission filter: decides once per request whether the authenticated
// user may proceed, based on a single atomic token consumption. Allowed
// requests carry their remaining quota in a response header; rejected
// requests are answered with 429 and a retry hint, and the downstream
// handler never runs.
//
// Fail-closed: if the bucket store or the subscription lookup is
// unavailable the request is rejected with 503 rather than admitted
// unmetered.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := AuthenticatedUserID(c)
		if !ok {
			// Rate-limited routes are registered behind RequireAuth; a
			// missing principal here is a wiring bug, not a client error.
			log.Printf("rate limit check on unauthenticated request: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status":      http.StatusText(http.StatusInternalServerError),
				"description": "Internal server error",
			})
			return
		}

		result, err := limiter.CheckAndConsume(c.Request.Context(), userID)
		if err != nil {
			requestID := c.GetString("request_id")
			log.Printf("[%s] rate limit check failed for user %s: %v", requestID, userID, err)

			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"status":      http.StatusText(http.StatusServiceUnavailable),
				"description": "Unable to verify request quota, please retry",
			})
			return
		}

		c.Header("X-Rate-Limit-Remaining", fmt.Sprintf("%d", result.RemainingTokens))

		if !result.Allowed {
			retryAfter := retryAfterSeconds(result.NanosToRefill)
			c.Header("X-Rate-Limit-Retry-After-Seconds", fmt.Sprintf("%d", retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":      http.StatusText(http.StatusTooManyRequests),
				"description": "API request limit linked to your current plan has been exhausted",
			})
			return
		}

		c.Next()
	}
}

// Rounds the refill wait up to whole seconds so the hint never tells a
// client to retry too early.
func retryAfterSeconds(nanos int64) int64 {
	seconds := nanos / int64(time.Second)
	if nanos%int64(time.Second) > 0 {
		seconds++
	}
	return seconds
}
