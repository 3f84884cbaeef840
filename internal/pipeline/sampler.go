// sampler.go - Fan-out sampling of the analysis call.
//
// A single model answer is too noisy to trust, so the sampler issues
// SampleCount independent calls carrying the identical instruction prompt
// and keeps whichever subset survives repair and validation. The fan-out IS
// the retry strategy: an individual failed call is dropped, never re-issued.

package pipeline

import (
	"context"

	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

type sampleOutcome struct {
	index     int
	candidate *AnalysisResult
	tokens    common.TokenUsage
}

// collectSamples runs the fan-out and returns the validated candidates in
// call-index order. Preserving issue order rather than completion order
// keeps the reducer's first-seen tie-breaks reproducible for a fixed set of
// model outputs, no matter how the calls interleave.
func (p *Pipeline) collectSamples(ctx context.Context, req *AnalysisRequest, reqCtx *common.RequestContext) []*AnalysisResult {
	prompt := ai.BuildAnalysisPrompt(req.MealContext)

	jobs := make(chan int, p.sampleCount)
	outcomes := make(chan sampleOutcome, p.sampleCount)

	workers := p.sampleWorkers
	if workers <= 0 || workers > p.sampleCount {
		workers = p.sampleCount
	}

	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				outcomes <- p.runSample(ctx, idx, prompt, req, reqCtx)
			}
		}()
	}

	for i := 0; i < p.sampleCount; i++ {
		jobs <- i
	}
	close(jobs)

	// Aggregate into an index-keyed slice. Token usage is merged here, on
	// the collecting goroutine, because AddTokens is not safe to call from
	// the workers.
	byIndex := make([]*AnalysisResult, p.sampleCount)
	for i := 0; i < p.sampleCount; i++ {
		outcome := <-outcomes
		byIndex[outcome.index] = outcome.candidate
		reqCtx.AddTokens(&outcome.tokens)
	}

	candidates := make([]*AnalysisResult, 0, p.sampleCount)
	for _, c := range byIndex {
		if c != nil {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// runSample performs one analysis call plus its repair and validation.
// Every failure path returns a nil candidate: the sample is dropped and the
// rest of the batch carries on.
func (p *Pipeline) runSample(ctx context.Context, idx int, prompt string, req *AnalysisRequest, reqCtx *common.RequestContext) sampleOutcome {
	outcome := sampleOutcome{index: idx}

	parts := []ai.Part{
		ai.TextPart(prompt),
		ai.ImagePart(req.MIMEType, req.ImageData),
	}

	raw, usage, err := p.provider.GenerateContent(ctx, parts, reqCtx)
	mergeTokens(&outcome.tokens, usage)
	if err != nil {
		callErr := ai.CategorizeCallError(err)
		reqCtx.LogWarning("sample %d/%d failed: %s", idx+1, p.sampleCount, callErr.Error())
		return outcome
	}

	candidate, corrUsage := p.repairAndValidate(ctx, raw, reqCtx)
	mergeTokens(&outcome.tokens, corrUsage)
	if candidate == nil {
		reqCtx.LogWarning("sample %d/%d discarded after repair", idx+1, p.sampleCount)
		return outcome
	}
	if candidate.IsError() {
		reqCtx.LogWarning("sample %d/%d reported an error instead of a breakdown, dropping it", idx+1, p.sampleCount)
		return outcome
	}

	outcome.candidate = candidate
	return outcome
}

func mergeTokens(dst *common.TokenUsage, src *common.TokenUsage) {
	if src == nil {
		return
	}
	dst.InputTokens += src.InputTokens
	dst.OutputTokens += src.OutputTokens
	dst.TotalTokens += src.TotalTokens
	dst.CostUSD += src.CostUSD
	dst.CostTHB += src.CostTHB
}
