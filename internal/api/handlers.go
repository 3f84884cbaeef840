// handlers.go - HTTP handlers for meal photo analysis and service health

package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
	"github.com/bosocmputer/meal_calorie_gemini/internal/pipeline"
	"github.com/bosocmputer/meal_calorie_gemini/internal/processor"
	"github.com/bosocmputer/meal_calorie_gemini/internal/storage"
)

// allowedImageTypes lists the upload extensions the vision models accept.
var allowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// AnalyzeMealHandler handles POST requests to /api/v1/analyze.
// It accepts a multipart form with the meal photo plus optional context text,
// runs the multi-sample analysis pipeline, and returns the calorie breakdown.
//
// Analysis failures (not food, model output unusable) are reported inside the
// result body with HTTP 200 - only transport problems get a 4xx/5xx status.
func AnalyzeMealHandler(c *gin.Context) {
	// Step 1: Validate the upload before doing any work
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "image file is required (multipart field 'image')",
		})
		return
	}

	maxBytes := int64(configs.MAX_UPLOAD_SIZE_MB) << 20
	if file.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"status": "error",
			"error":  fmt.Sprintf("image exceeds the %dMB upload limit", configs.MAX_UPLOAD_SIZE_MB),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageTypes[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  fmt.Sprintf("unsupported image type %q (allowed: jpg, jpeg, png, webp, gif)", ext),
		})
		return
	}

	mealContext := strings.TrimSpace(c.PostForm("meal_context"))
	saveRequested := c.PostForm("save") == "true"

	userID, authenticated := CurrentUserID(c)
	if saveRequested && !authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "saving to history requires authentication",
		})
		return
	}

	// Create request context for tracking
	reqCtx := common.NewRequestContext(userID)
	reqCtx.LogInfo("🍽️ New analysis request | file: %s (%.1f KB) | context: %q", file.Filename, float64(file.Size)/1024.0, mealContext)

	// Step 2: Stage the upload on disk for the image tooling
	uploadPath := filepath.Join(configs.UPLOAD_DIR, uuid.New().String()+ext)
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":     "error",
			"error":      "failed to store uploaded image",
			"details":    err.Error(),
			"request_id": reqCtx.RequestID,
		})
		return
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil {
			reqCtx.LogWarning("Failed to delete temporary file %s: %v", uploadPath, err)
		}
	}()

	// Step 3: Preprocess the photo (downscale + sharpen, color preserved)
	var imageData []byte
	var mimeType string

	if configs.ENABLE_IMAGE_PREPROCESSING {
		reqCtx.StartStep("image_preprocessing")
		imageData, mimeType, err = processor.PreprocessMealPhoto(uploadPath)
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			reqCtx.LogWarning("Preprocessing failed, sending original image: %v", err)
		} else {
			reqCtx.EndStep("success", nil, nil)
		}
	}
	if imageData == nil {
		imageData, err = os.ReadFile(uploadPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":     "error",
				"error":      "failed to read uploaded image",
				"details":    err.Error(),
				"request_id": reqCtx.RequestID,
			})
			return
		}
		mimeType = processor.DetectMIMEType(uploadPath)
	}

	// Step 4: Serve from cache when the same photo+context was analyzed recently
	cacheKey := storage.AnalysisCacheKey(imageData, mealContext)
	if cached := storage.GetCachedAnalysis(cacheKey); cached != nil {
		reqCtx.LogInfo("⚡ Cache hit - skipping analysis pipeline")
		respondWithResult(c, reqCtx, cached, true, saveRequested, userID, mealContext, imageData)
		return
	}

	// Step 5: Run the analysis pipeline under the configured deadline.
	// One request fans out into a dozen model calls, so the budget is generous.
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(configs.ANALYZE_TIMEOUT)*time.Second)
	defer cancel()

	provider := selectProvider(reqCtx)
	request := &pipeline.AnalysisRequest{
		ImageData:   imageData,
		MIMEType:    mimeType,
		MealContext: mealContext,
	}

	result := pipeline.New(provider).Analyze(ctx, request, reqCtx)
	if ctx.Err() == context.DeadlineExceeded {
		partial := reqCtx.GetPartialSummary()
		reqCtx.LogWarning("analysis hit the %ds deadline | completed steps: %v", configs.ANALYZE_TIMEOUT, partial["completed_steps"])
	}

	storage.PutCachedAnalysis(cacheKey, result)
	respondWithResult(c, reqCtx, result, false, saveRequested, userID, mealContext, imageData)
}

// selectProvider builds the configured AI provider, falling back to the
// alternative provider when the primary one has no API key. Returns nil when
// nothing is configured - the pipeline turns that into a readable error result.
func selectProvider(reqCtx *common.RequestContext) ai.Provider {
	primary, fallback, err := ai.CreateProviderWithFallback()
	if err == nil {
		return primary
	}
	if fallback != nil {
		reqCtx.LogWarning("Primary provider unavailable (%v), using fallback %s", err, fallback.GetProviderName())
		return fallback
	}
	reqCtx.LogError("No AI provider configured: %v", err)
	return nil
}

// respondWithResult saves the analysis to history when requested, then writes
// the uniform success/error envelope with request metadata.
func respondWithResult(c *gin.Context, reqCtx *common.RequestContext, result *pipeline.AnalysisResult, cacheHit bool, saveRequested bool, userID, mealContext string, imageData []byte) {
	var historyID string
	if saveRequested && !result.IsError() {
		reqCtx.StartStep("save_history")
		imageBase64 := base64.StdEncoding.EncodeToString(imageData)
		id, err := storage.SaveHistory(userID, mealContext, result, imageBase64)
		if err != nil {
			reqCtx.EndStep("failed", nil, err)
			reqCtx.LogWarning("Failed to save history entry: %v", err)
		} else {
			historyID = id
			reqCtx.EndStep("success", nil, nil)
		}
	}

	summary := reqCtx.GetSummary()
	tokenUsage := summary["token_usage"].(map[string]interface{})

	metadata := gin.H{
		"request_id":   reqCtx.RequestID,
		"processed_at": time.Now().Format(time.RFC3339),
		"duration_sec": summary["total_duration_sec"],
		"tokens":       tokenUsage["total_tokens"],
		"cost_usd":     tokenUsage["cost_usd"],
		"cost_thb":     tokenUsage["cost_thb"],
		"cache_hit":    cacheHit,
	}
	if historyID != "" {
		metadata["history_id"] = historyID
	}

	status := "success"
	if result.IsError() {
		status = "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"data":     result,
		"metadata": metadata,
	})
}

// HealthHandler handles GET /health for load balancer probes.
func HealthHandler(c *gin.Context) {
	if err := storage.PingMongoDB(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"service": "meal-calorie-analyzer",
			"mongodb": "unreachable",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "meal-calorie-analyzer",
		"version": "1.0.0",
		"mongodb": "connected",
	})
}
