// interface.go - AI provider interface for supporting multiple vision models

package ai

import (
	"context"

	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

// Part is one piece of a prompt: either text or inline image bytes
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart builds a text prompt part
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image prompt part
func ImagePart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// Provider defines the interface that all AI providers must implement
// This allows us to support multiple AI providers (Gemini, Mistral, etc.) with the same interface
type Provider interface {
	// GenerateContent sends prompt parts (text and optional inline images)
	// to the model and returns the raw text reply
	// reqCtx: request context for logging and tracking (may be nil)
	GenerateContent(ctx context.Context, parts []Part, reqCtx *common.RequestContext) (string, *common.TokenUsage, error)

	// GetProviderName returns the name of the provider (e.g., "gemini", "mistral")
	GetProviderName() string
}
