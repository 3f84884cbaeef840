// gate.go - Image gate: one yes/no model call that decides whether the
// uploaded photo shows food at all, so that obvious junk (selfies,
// screenshots, documents) is rejected before the expensive fan-out.

package pipeline

import (
	"context"
	"strings"

	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

// checkImageIsFood asks the model whether the photo shows food.
//
// Fail-open policy: when the gate call itself errors (network, quota), the
// pipeline assumes the photo IS food and continues. A user with a real meal
// photo must not be blocked by a flaky upstream call; only an actual model
// verdict stops the run.
func (p *Pipeline) checkImageIsFood(ctx context.Context, req *AnalysisRequest, reqCtx *common.RequestContext) bool {
	parts := []ai.Part{
		ai.TextPart(ai.FoodGatePrompt()),
		ai.ImagePart(req.MIMEType, req.ImageData),
	}

	reqCtx.StartSubStep("call_ai_api")
	reply, usage, err := p.provider.GenerateContent(ctx, parts, reqCtx)
	reqCtx.EndSubStep(p.provider.GetProviderName())
	reqCtx.AddTokens(usage)

	if err != nil {
		reqCtx.LogWarning("image gate call failed, assuming the photo is food: %v", err)
		return true
	}

	// Anything other than the exact word "true" after normalization is a
	// non-food verdict, including prose like "Yes, this is food".
	answer := strings.ToLower(strings.TrimSpace(reply))
	return answer == "true"
}
