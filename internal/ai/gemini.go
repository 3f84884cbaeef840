// gemini.go - Gemini provider: sends prompt parts to the Gemini API and
// returns the raw text reply.

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
	"github.com/bosocmputer/meal_calorie_gemini/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider for Google Gemini vision models.
type GeminiProvider struct {
	apiKey    string
	modelName string
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
	}
}

// GetProviderName returns "gemini"
func (g *GeminiProvider) GetProviderName() string {
	return "gemini"
}

// ptr is a helper function to get a pointer to an int32 value
func ptr(i int32) *int32 {
	return &i
}

// GenerateContent sends the prompt parts to Gemini and returns the raw text
// reply. The client is short-lived: created per call and closed before
// returning, so no API client outlives a single call.
func (g *GeminiProvider) GenerateContent(ctx context.Context, parts []Part, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	if g.apiKey == "" {
		return "", nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.modelName)

	// Explicit MaxOutputTokens prevents silent truncation of long item lists.
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptr(int32(8192)),
	}
	model.SetTemperature(float32(configs.GEMINI_TEMPERATURE))

	genaiParts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			genaiParts = append(genaiParts, genai.Text(p.Text))
		} else if len(p.Data) > 0 {
			genaiParts = append(genaiParts, genai.Blob{
				MIMEType: p.MIMEType,
				Data:     p.Data,
			})
		}
	}

	// Pace every call through the shared limiter. One analysis fans out a
	// dozen calls and free-tier RPM quotas are easy to blow through.
	ratelimit.WaitForRateLimit()

	resp, err := model.GenerateContent(ctx, genaiParts...)
	if err != nil {
		return "", nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if resp.PromptFeedback != nil && reqCtx != nil {
			reqCtx.LogWarning("Gemini returned no candidates (block reason: %v)", resp.PromptFeedback.BlockReason)
		}
		return "", nil, fmt.Errorf("no response from Gemini API")
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			reply.WriteString(string(text))
		}
	}
	if reply.Len() == 0 {
		return "", nil, fmt.Errorf("empty response from Gemini API (FinishReason: %v)", resp.Candidates[0].FinishReason)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens && reqCtx != nil {
		reqCtx.LogWarning("Gemini reply was truncated (FinishReason: MAX_TOKENS)")
	}

	var usage *common.TokenUsage
	if resp.UsageMetadata != nil {
		tokens := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
		usage = &tokens
	}

	return reply.String(), usage, nil
}
