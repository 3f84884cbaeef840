// middleware.go - CORS and session authentication middleware

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/storage"
)

// userIDKey is the gin context key holding the authenticated user's ID.
const userIDKey = "user_id"

// CORSMiddleware sets the CORS headers for browser clients.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", configs.ALLOWED_ORIGINS)
		c.Header("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Returns "" when the header is missing or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests without a valid session token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "authentication required",
			})
			return
		}

		session, err := storage.GetSession(token)
		if err != nil {
			message := "invalid session token"
			if err == storage.ErrSessionExpired {
				message = "session expired, please log in again"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  message,
			})
			return
		}

		c.Set(userIDKey, session.UserID)
		c.Next()
	}
}

// OptionalAuth resolves the session when a token is present but never rejects.
// Handlers that can work anonymously (analyze without saving) use this.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if session, err := storage.GetSession(token); err == nil {
				c.Set(userIDKey, session.UserID)
			}
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's ID, if any.
func CurrentUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
