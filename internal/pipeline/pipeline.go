// pipeline.go - The meal photo analysis pipeline.
//
// One run is a single pass: image gate -> N-way sampling -> per-sample
// repair -> consensus reduction. There is no state between runs and no
// cancellation beyond the caller's context, and every outcome, including
// failure, is a well-formed AnalysisResult.

package pipeline

import (
	"context"
	"errors"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

// Pipeline runs meal photo analyses against one AI provider.
type Pipeline struct {
	provider      ai.Provider
	sampleCount   int
	sampleWorkers int
}

// New builds a pipeline around the given provider with the configured
// sampling parameters. A nil provider is allowed; every run then reports the
// missing-configuration error result.
func New(provider ai.Provider) *Pipeline {
	count := configs.SAMPLE_COUNT
	if count <= 0 {
		count = 5
	}
	workers := configs.SAMPLE_WORKERS
	if workers <= 0 {
		workers = count
	}
	return &Pipeline{
		provider:      provider,
		sampleCount:   count,
		sampleWorkers: workers,
	}
}

// Analyze runs one full pass over the request. It always returns a
// well-formed result: failures are reported inside the result, never as an
// error to the caller.
func (p *Pipeline) Analyze(ctx context.Context, req *AnalysisRequest, reqCtx *common.RequestContext) *AnalysisResult {
	if reqCtx == nil {
		reqCtx = common.NewRequestContext("")
	}

	if p.provider == nil {
		reqCtx.LogError("no analysis provider is configured")
		return NotConfiguredResult()
	}

	// Stage 1: image gate.
	reqCtx.StartStep("image_gate")
	isFood := p.checkImageIsFood(ctx, req, reqCtx)
	reqCtx.EndStep("success", nil, nil)
	if !isFood {
		reqCtx.LogInfo("image gate verdict: not food")
		return NotFoodResult()
	}

	// Stage 2+3: fan-out sampling with per-sample repair.
	reqCtx.StartStep("sample_analyses")
	candidates := p.collectSamples(ctx, req, reqCtx)
	if len(candidates) == 0 {
		reqCtx.EndStep("failed", nil, errors.New("no sample survived repair and validation"))
		return AllSamplesFailedResult()
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("%d/%d samples produced valid candidates", len(candidates), p.sampleCount)

	// Stage 4: consensus reduction.
	reqCtx.StartStep("consensus_reduction")
	result := p.reduceCandidates(ctx, candidates, reqCtx)
	reqCtx.EndStep("success", nil, nil)

	return result
}
