package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/service"
)

// Key under which the authenticated principal's id is stored in the
// request context.
const UserIDKey = "user_id"

// Validates the bearer token and stores the authenticated user id in
// the request context. Requests without a valid token are rejected
// before any downstream handler runs.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c)
			return
		}

		userID, err := authService.ValidateToken(parts[1])
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)

		c.Next()
	}
}

// Returns the authenticated user's id from the request context.
func AuthenticatedUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}

	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":      http.StatusText(http.StatusUnauthorized),
		"description": "Authentication failure: token missing, invalid or expired",
	})
}
