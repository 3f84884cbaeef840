// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"log"
	"time"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/google/uuid"
)

// RequestContext tracks the entire request lifecycle with timing and costs
type RequestContext struct {
	RequestID           string
	UserID              string
	StartTime           time.Time
	Steps               []StepLog
	TotalTokens         TokenUsage
	CurrentStep         string
	CurrentStepStart    time.Time
	CurrentSubSteps     []SubStepLog
	CurrentSubStep      string
	CurrentSubStepStart time.Time
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string       `json:"name"`
	StartTime time.Time    `json:"start_time"`
	Duration  int64        `json:"duration_ms"`
	Status    string       `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage  `json:"tokens,omitempty"`
	Error     string       `json:"error,omitempty"`
	SubSteps  []SubStepLog `json:"sub_steps,omitempty"`
}

// SubStepLog represents a detailed sub-operation within a step
type SubStepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Details   string    `json:"details,omitempty"`
}

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CostTHB      float64 `json:"cost_thb"`
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(userID string) *RequestContext {
	reqID := uuid.New().String()
	now := time.Now()

	log.Printf("[%s] 🚀 New request | UserID: %s | Time: %s", reqID, userID, now.Format("15:04:05"))

	return &RequestContext{
		RequestID:   reqID,
		UserID:      userID,
		StartTime:   now,
		Steps:       []StepLog{},
		TotalTokens: TokenUsage{},
	}
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()

	stepDescriptions := map[string]string{
		"image_preprocessing": "🔧 Preprocess meal photo",
		"image_gate":          "🚪 Check photo shows food (Image Gate)",
		"sample_analyses":     "🔍 Run calorie analyses (AI Sampling)",
		"consensus_reduction": "🧮 Reduce candidates to consensus",
		"save_history":        "💾 Save analysis to history",
	}

	desc := stepDescriptions[stepName]
	if desc == "" {
		desc = stepName
	}

	log.Printf("[%s] \n┌── %s", rc.RequestID, desc)
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
		SubSteps:  rc.CurrentSubSteps, // Capture sub-steps
	}

	if err != nil {
		stepLog.Error = err.Error()
		log.Printf("[%s] ❌ FAILED - %s (%.2fs) - Error: %v",
			rc.RequestID, rc.CurrentStep, float64(duration)/1000, err)
	} else {
		logMsg := fmt.Sprintf("[%s] └── ✅ Done in %.2fs",
			rc.RequestID, float64(duration)/1000)

		if tokens != nil {
			rc.TotalTokens.InputTokens += tokens.InputTokens
			rc.TotalTokens.OutputTokens += tokens.OutputTokens
			rc.TotalTokens.TotalTokens += tokens.TotalTokens
			rc.TotalTokens.CostUSD += tokens.CostUSD
			rc.TotalTokens.CostTHB += tokens.CostTHB

			logMsg += fmt.Sprintf(" | 🪙 Tokens: %d in + %d out = %d | 💰 Cost: ฿%.2f",
				tokens.InputTokens, tokens.OutputTokens, tokens.TotalTokens, tokens.CostTHB)
		}

		// Log sub-steps summary if any
		if len(rc.CurrentSubSteps) > 0 {
			logMsg += fmt.Sprintf(" | sub-steps: %d", len(rc.CurrentSubSteps))
		}

		log.Printf(logMsg)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
	rc.CurrentSubSteps = []SubStepLog{} // Reset sub-steps for next step
}

// CalculateTokenCost computes USD and THB cost from token counts
// using Gemini pricing (the primary provider)
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	totalTokens := inputTokens + outputTokens

	inputCost := float64(inputTokens) * configs.GEMINI_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.GEMINI_OUTPUT_PRICE_PER_MILLION / 1_000_000
	costUSD := inputCost + outputCost
	costTHB := costUSD * configs.USD_TO_THB

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		CostUSD:      costUSD,
		CostTHB:      costTHB,
	}
}

// CalculateMistralTokenCost computes cost using Mistral pricing
// (used when the fallback provider handles a call)
func CalculateMistralTokenCost(inputTokens, outputTokens int) TokenUsage {
	totalTokens := inputTokens + outputTokens

	inputCost := float64(inputTokens) * configs.MISTRAL_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.MISTRAL_OUTPUT_PRICE_PER_MILLION / 1_000_000
	costUSD := inputCost + outputCost
	costTHB := costUSD * configs.USD_TO_THB

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		CostUSD:      costUSD,
		CostTHB:      costTHB,
	}
}

// AddTokens merges usage from a single API call into the running total
// without going through a step. Not goroutine-safe: callers collect
// worker results first and merge them sequentially.
func (rc *RequestContext) AddTokens(tokens *TokenUsage) {
	if tokens == nil {
		return
	}
	rc.TotalTokens.InputTokens += tokens.InputTokens
	rc.TotalTokens.OutputTokens += tokens.OutputTokens
	rc.TotalTokens.TotalTokens += tokens.TotalTokens
	rc.TotalTokens.CostUSD += tokens.CostUSD
	rc.TotalTokens.CostTHB += tokens.CostTHB
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	// Build step breakdown
	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"request_id":         rc.RequestID,
		"user_id":            rc.UserID,
		"total_duration_ms":  totalDuration,
		"total_duration_sec": float64(totalDuration) / 1000,
		"step_breakdown":     stepBreakdown,
		"total_steps":        len(rc.Steps),
		"token_usage": map[string]interface{}{
			"input_tokens":  rc.TotalTokens.InputTokens,
			"output_tokens": rc.TotalTokens.OutputTokens,
			"total_tokens":  rc.TotalTokens.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", rc.TotalTokens.CostUSD),
			"cost_thb":      fmt.Sprintf("฿%.2f", rc.TotalTokens.CostTHB),
		},
	}

	log.Printf("[%s] \n═══ 🎯 Request Summary ═══", rc.RequestID)
	log.Printf("[%s] ⏱️  Total: %.2fs | 📝 Steps: %d | 🪙 Tokens: %s | 💰 Cost: ฿%.2f",
		rc.RequestID,
		float64(totalDuration)/1000,
		len(rc.Steps),
		fmt.Sprintf("%s in + %s out = %s total",
			formatNumber(rc.TotalTokens.InputTokens),
			formatNumber(rc.TotalTokens.OutputTokens),
			formatNumber(rc.TotalTokens.TotalTokens)),
		rc.TotalTokens.CostTHB)
	log.Printf("[%s] ═══════════════════════════\n", rc.RequestID)

	return summary
}

// StartSubStep begins tracking a detailed sub-operation
func (rc *RequestContext) StartSubStep(subStepName string) {
	rc.CurrentSubStep = subStepName
	rc.CurrentSubStepStart = time.Now()

	subStepDesc := map[string]string{
		"image_preprocessing": "🔧 Adjust image quality",
		"init_ai_client":      "🤖 Connect to AI",
		"build_prompt":        "📢 Build prompt",
		"call_ai_api":         "🚀 Call AI API",
		"repair_json":         "🔧 Repair JSON candidate",
		"correction_pass":     "🩹 Model confirm-or-correct",
		"parse_json_response": "🔄 Parse response",
		"extract_metadata":    "📊 Extract metadata",
	}

	desc := subStepDesc[subStepName]
	if desc == "" {
		desc = subStepName
	}

	log.Printf("[%s]    ├─ %s...", rc.RequestID, desc)
}

// EndSubStep completes the current sub-step and records timing
func (rc *RequestContext) EndSubStep(details string) {
	if rc.CurrentSubStep == "" {
		return
	}

	duration := time.Since(rc.CurrentSubStepStart).Milliseconds()

	subStepLog := SubStepLog{
		Name:      rc.CurrentSubStep,
		StartTime: rc.CurrentSubStepStart,
		Duration:  duration,
		Details:   details,
	}

	rc.CurrentSubSteps = append(rc.CurrentSubSteps, subStepLog)

	detailsMsg := ""
	if details != "" {
		detailsMsg = " | " + details
	}
	log.Printf("[%s]    └─ ✅ %.2fs%s",
		rc.RequestID, float64(duration)/1000, detailsMsg)

	rc.CurrentSubStep = ""
}

// LogInfo logs info-level message with request ID prefix
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ℹ️  %s", rc.RequestID, msg)
}

// LogWarning logs warning-level message with request ID prefix
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ⚠️  %s", rc.RequestID, msg)
}

// LogError logs error-level message with request ID prefix
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] ❌ %s", rc.RequestID, msg)
}

// GetPartialSummary returns a summary of completed steps (for timeout scenarios)
func (rc *RequestContext) GetPartialSummary() map[string]interface{} {
	completedSteps := []string{}
	for _, step := range rc.Steps {
		if step.Status == "success" {
			completedSteps = append(completedSteps, step.Name)
		}
	}

	return map[string]interface{}{
		"completed_steps": completedSteps,
		"total_steps":     len(rc.Steps),
		"current_step":    rc.CurrentStep,
	}
}

// formatNumber adds comma separators to numbers
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n%1000000)/1000, n%1000)
}
