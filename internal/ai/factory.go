// factory.go - Provider factory for creating AI provider instances

package ai

import (
	"fmt"
	"log"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
)

// CreateProvider creates the provider selected by AI_PROVIDER. A missing API
// key is reported as an error here, per run, so the server can boot without
// credentials and still answer every request with a readable failure.
func CreateProvider() (Provider, error) {
	switch configs.AI_PROVIDER {
	case "gemini":
		if configs.GEMINI_API_KEY == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		log.Printf("🔵 Creating Gemini provider (model: %s)", configs.GEMINI_MODEL_NAME)
		return NewGeminiProvider(configs.GEMINI_API_KEY, configs.GEMINI_MODEL_NAME), nil

	case "mistral":
		if configs.MISTRAL_API_KEY == "" {
			return nil, fmt.Errorf("MISTRAL_API_KEY is not set")
		}
		log.Printf("🔷 Creating Mistral provider (model: %s)", configs.MISTRAL_MODEL_NAME)
		return NewMistralProvider(configs.MISTRAL_API_KEY, configs.MISTRAL_MODEL_NAME), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s (supported: gemini, mistral)", configs.AI_PROVIDER)
	}
}

// CreateProviderWithFallback creates the primary provider plus the opposite
// provider as a fallback when that one has a key. The fallback is a
// selection-time alternative for an unconfigured primary; a failed call is
// never re-issued against it.
func CreateProviderWithFallback() (primary Provider, fallback Provider, err error) {
	primary, err = CreateProvider()

	switch configs.AI_PROVIDER {
	case "gemini":
		if configs.MISTRAL_API_KEY != "" {
			fallback = NewMistralProvider(configs.MISTRAL_API_KEY, configs.MISTRAL_MODEL_NAME)
			log.Printf("✅ Fallback provider configured: Mistral")
		}
	case "mistral":
		if configs.GEMINI_API_KEY != "" {
			fallback = NewGeminiProvider(configs.GEMINI_API_KEY, configs.GEMINI_MODEL_NAME)
			log.Printf("✅ Fallback provider configured: Gemini")
		}
	}

	return primary, fallback, err
}
