// repair.go - Syntactic repair and validation of model replies.
//
// The model is asked for strict JSON but does not reliably produce it:
// replies arrive wrapped in Markdown fences, padded with prose, or with
// small syntax slips. CleanModelJSON fixes the mechanical mistakes with pure
// text surgery; the confirm-or-correct pass in repairAndValidate then lets
// the model fix schema drift (wrong keys, wrong types) that text surgery
// cannot reach.

package pipeline

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

var (
	// `"value" stray prose,` -> `"value",` - commentary the model slipped in
	// between a quoted value and the next delimiter.
	strayProseRe = regexp.MustCompile(`"([^"]*)"\s*[^",:{}\[\]]+\s*([,}\]])`)

	// `"key",}` -> `"key": 0,}` - a key emitted with no value at the tail of
	// an object gets a default value of 0.
	danglingKeyRe = regexp.MustCompile(`"(\w+)"\s*,(\s*})`)

	// Trailing commas before a closing brace or bracket are illegal JSON.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// CleanModelJSON applies the pure text transforms that turn a typical model
// reply into parseable JSON. It is idempotent on already-valid minified JSON.
func CleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// 1. Strip Markdown code fences.
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// 2. Keep only the outermost {...} span; the model sometimes wraps the
	// object in prose ("Here is the analysis: {...} Hope that helps!").
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	// 3. Collapse commentary between a quoted value and the next delimiter.
	s = strayProseRe.ReplaceAllString(s, `"${1}"${2}`)

	// 4. Patch dangling keys before stripping trailing commas, otherwise the
	// comma that identifies the pattern is already gone.
	s = danglingKeyRe.ReplaceAllString(s, `"${1}": 0,${2}`)

	// 5. Strip trailing commas.
	s = trailingCommaRe.ReplaceAllString(s, `${1}`)

	return s
}

// parseResult unmarshals cleaned text into an AnalysisResult. A nil Items
// slice is normalized to an empty one so that successful results always have
// items defined.
func parseResult(cleaned string) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, err
	}
	if result.Items == nil {
		result.Items = []FoodItem{}
	}
	return &result, nil
}

// repairAndValidate turns one raw model reply into a validated result, or
// nil when the reply must be discarded. The returned token usage covers the
// confirm-or-correct call, which is best-effort: when it fails or its reply
// does not parse, the cleaned candidate itself is parsed directly.
func (p *Pipeline) repairAndValidate(ctx context.Context, raw string, reqCtx *common.RequestContext) (*AnalysisResult, *common.TokenUsage) {
	cleaned := CleanModelJSON(raw)

	var spent *common.TokenUsage
	if p.provider != nil {
		parts := []ai.Part{ai.TextPart(ai.BuildCorrectionPrompt(cleaned))}
		corrected, usage, err := p.provider.GenerateContent(ctx, parts, reqCtx)
		spent = usage
		if err != nil {
			reqCtx.LogWarning("confirm-or-correct call failed, parsing cleaned candidate directly: %v", err)
		} else if result, parseErr := parseResult(CleanModelJSON(corrected)); parseErr == nil {
			return result, spent
		} else {
			reqCtx.LogWarning("corrected reply still unparseable, parsing cleaned candidate directly: %v", parseErr)
		}
	}

	result, err := parseResult(cleaned)
	if err != nil {
		reqCtx.LogWarning("discarding unparseable candidate: %v", err)
		return nil, spent
	}
	return result, spent
}
