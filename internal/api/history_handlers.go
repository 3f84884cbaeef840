// history_handlers.go - Saved analysis history for authenticated users

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bosocmputer/meal_calorie_gemini/internal/pipeline"
	"github.com/bosocmputer/meal_calorie_gemini/internal/storage"
)

// ListHistoryHandler handles GET requests to /api/v1/history.
func ListHistoryHandler(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	entries, err := storage.ListHistory(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to load history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"count":   len(entries),
		"entries": entries,
	})
}

type saveHistoryRequest struct {
	MealContext string                   `json:"meal_context"`
	Result      *pipeline.AnalysisResult `json:"result" binding:"required"`
	ImageBase64 string                   `json:"image_base64"`
}

// SaveHistoryHandler handles POST requests to /api/v1/history.
// Clients that analyzed without save=true can persist the result afterwards.
func SaveHistoryHandler(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	var req saveHistoryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid request: result is required",
		})
		return
	}

	if req.Result.IsError() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "cannot save a failed analysis",
		})
		return
	}

	id, err := storage.SaveHistory(userID, strings.TrimSpace(req.MealContext), req.Result, req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to save history entry",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"id":     id,
	})
}

// DeleteHistoryHandler handles DELETE requests to /api/v1/history/:id.
func DeleteHistoryHandler(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	entryID := c.Param("id")

	if err := storage.DeleteHistory(userID, entryID); err != nil {
		if err == storage.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "history entry not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "failed to delete history entry",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
