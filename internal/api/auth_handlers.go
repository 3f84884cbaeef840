// auth_handlers.go - User registration and login

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/auth"
	"github.com/bosocmputer/meal_calorie_gemini/internal/storage"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler handles POST requests to /api/v1/auth/register.
func RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid request: email and a password of at least 8 characters are required",
		})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to process password",
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := storage.CreateUser(email, passwordHash)
	if err != nil {
		if err == storage.ErrEmailTaken {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  "an account with this email already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to create account",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"user_id": user.ID,
	})
}

// LoginHandler handles POST requests to /api/v1/auth/login.
// On success it issues a bearer session token.
func LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid request: email and password are required",
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := storage.GetUserByEmail(email)
	// Same message for unknown email and wrong password so login attempts
	// can't be used to probe which emails are registered.
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "invalid email or password",
		})
		return
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to create session",
		})
		return
	}

	expiresAt := time.Now().UTC().Add(time.Duration(configs.SESSION_TTL_HOURS) * time.Hour)
	if err := storage.CreateSession(token, user.ID, expiresAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to create session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// LogoutHandler handles POST requests to /api/v1/auth/logout.
// The presented session token is deleted; the middleware has already proven
// it resolves, so a delete failure here is a storage problem, not a bad token.
func LogoutHandler(c *gin.Context) {
	if err := storage.DeleteSession(bearerToken(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to end session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
