// mistral.go - Mistral provider: vision chat completions over HTTP.

package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
	"github.com/bosocmputer/meal_calorie_gemini/internal/ratelimit"
	"github.com/go-resty/resty/v2"
)

const mistralAPIBaseURL = "https://api.mistral.ai"

// MistralProvider implements Provider for Mistral vision models (the pixtral
// family). It is the alternative when AI_PROVIDER=mistral and the fallback
// when the Gemini key is missing.
type MistralProvider struct {
	apiKey    string
	modelName string
	client    *resty.Client
}

// NewMistralProvider creates a new Mistral provider
func NewMistralProvider(apiKey, modelName string) *MistralProvider {
	client := resty.New().
		SetBaseURL(mistralAPIBaseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &MistralProvider{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}
}

// GetProviderName returns "mistral"
func (m *MistralProvider) GetProviderName() string {
	return "mistral"
}

// Chat completions request/response structures

type mistralContentChunk struct {
	Type     string `json:"type"`                // "text" or "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"` // base64 data URL for inline images
}

type mistralMessage struct {
	Role    string                `json:"role"`
	Content []mistralContentChunk `json:"content"`
}

type mistralChatRequest struct {
	Model     string           `json:"model"`
	Messages  []mistralMessage `json:"messages"`
	MaxTokens int              `json:"max_tokens"`
}

type mistralChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
	Message string `json:"message"`
}

// GenerateContent sends the prompt parts to the Mistral chat completions
// API. Inline images travel as base64 data URLs inside the user message.
func (m *MistralProvider) GenerateContent(ctx context.Context, parts []Part, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	if m.apiKey == "" {
		return "", nil, fmt.Errorf("mistral API key is not configured")
	}

	chunks := make([]mistralContentChunk, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			chunks = append(chunks, mistralContentChunk{Type: "text", Text: p.Text})
		} else if len(p.Data) > 0 {
			dataURL := fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data))
			chunks = append(chunks, mistralContentChunk{Type: "image_url", ImageURL: dataURL})
		}
	}

	request := mistralChatRequest{
		Model:     m.modelName,
		Messages:  []mistralMessage{{Role: "user", Content: chunks}},
		MaxTokens: 8192,
	}

	ratelimit.WaitForRateLimit()

	var response mistralChatResponse
	var apiError mistralErrorResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+m.apiKey).
		SetBody(request).
		SetResult(&response).
		SetError(&apiError).
		Post("/v1/chat/completions")
	if err != nil {
		return "", nil, fmt.Errorf("mistral API request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiError.Error.Message
		if msg == "" {
			msg = apiError.Message
		}
		if msg == "" {
			msg = resp.String()
		}
		return "", nil, fmt.Errorf("mistral API error (status %d): %s", resp.StatusCode(), msg)
	}

	if len(response.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices returned from Mistral API")
	}
	choice := response.Choices[0]
	if choice.Message.Content == "" {
		return "", nil, fmt.Errorf("empty response from Mistral API (finish_reason: %s)", choice.FinishReason)
	}

	if choice.FinishReason == "length" && reqCtx != nil {
		reqCtx.LogWarning("Mistral reply was truncated (finish_reason: length)")
	}

	tokens := common.CalculateMistralTokenCost(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	return choice.Message.Content, &tokens, nil
}
