package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

// Realistic model replies used across the pipeline tests.
const (
	candChickenRice = `{"mealDescription":"Chicken rice bowl","totalEstimatedCalories":600,"items":[{"itemName":"Grilled chicken","quantity":"150g","calories":250,"protein_g":46,"carbs_g":0,"fat_g":5},{"itemName":"Steamed rice","quantity":"1 cup","calories":350,"protein_g":6,"carbs_g":76,"fat_g":1}],"confidenceScore":0.8,"assumptionsMade":"Assumed no added oil."}`

	candChickenRiceBigger = `{"mealDescription":"Chicken rice bowl","totalEstimatedCalories":640,"items":[{"itemName":"Grilled chicken","quantity":"160g","calories":270,"protein_g":48,"carbs_g":0,"fat_g":6},{"itemName":"Steamed rice","quantity":"1 cup","calories":370,"protein_g":6,"carbs_g":80,"fat_g":1}],"confidenceScore":0.7,"assumptionsMade":"Assumed a larger chicken portion."}`

	mergedChickenRice = `{"mealDescription":"Chicken rice bowl","totalEstimatedCalories":620,"items":[{"itemName":"Grilled chicken","quantity":"155g","calories":260,"protein_g":47,"carbs_g":0,"fat_g":5.5},{"itemName":"Steamed rice","quantity":"1 cup","calories":360,"protein_g":6,"carbs_g":78,"fat_g":1}],"confidenceScore":0.75,"assumptionsMade":"Averaged two close analyses."}`
)

type sampleScript struct {
	reply string
	err   error
}

// fakeProvider scripts model replies by prompt shape, so one fake serves the
// gate, sample, correction and merge calls of a full pipeline run.
type fakeProvider struct {
	mu sync.Mutex

	gateReply    string
	gateErr      error
	samples      []sampleScript
	sampleIdx    int
	correctReply string // "" means confirm the candidate unchanged
	correctErr   error
	mergeReply   string
	mergeErr     error

	usage *common.TokenUsage
	stall time.Duration

	calls       []string
	inFlight    int
	maxInFlight int
}

func (f *fakeProvider) GetProviderName() string { return "fake" }

func (f *fakeProvider) GenerateContent(_ context.Context, parts []ai.Part, _ *common.RequestContext) (string, *common.TokenUsage, error) {
	var prompt string
	for _, part := range parts {
		if part.Text != "" {
			prompt = part.Text
			break
		}
	}

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.stall > 0 {
		time.Sleep(f.stall)
	}

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	switch {
	case strings.Contains(prompt, "If the text already conforms"):
		f.recordCall("correction")
		if f.correctErr != nil {
			return "", nil, f.correctErr
		}
		if f.correctReply != "" {
			return f.correctReply, f.usage, nil
		}
		return correctionCandidate(prompt), f.usage, nil

	case strings.Contains(prompt, "independent nutrition analyses"):
		f.recordCall("merge")
		if f.mergeErr != nil {
			return "", nil, f.mergeErr
		}
		return f.mergeReply, f.usage, nil

	case strings.Contains(prompt, "exactly one word"):
		f.recordCall("gate")
		if f.gateErr != nil {
			return "", nil, f.gateErr
		}
		return f.gateReply, f.usage, nil

	default:
		f.recordCall("sample")
		f.mu.Lock()
		idx := f.sampleIdx
		f.sampleIdx++
		f.mu.Unlock()
		if idx >= len(f.samples) {
			return "", nil, fmt.Errorf("unexpected sample call %d", idx)
		}
		script := f.samples[idx]
		if script.err != nil {
			return "", nil, script.err
		}
		return script.reply, f.usage, nil
	}
}

func (f *fakeProvider) recordCall(kind string) {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
}

func (f *fakeProvider) callCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == kind {
			n++
		}
	}
	return n
}

// correctionCandidate pulls the candidate text back out of a
// confirm-or-correct prompt so the fake can confirm it unchanged.
func correctionCandidate(prompt string) string {
	const marker = "Text:\n"
	idx := strings.Index(prompt, marker)
	if idx < 0 {
		return ""
	}
	candidate := prompt[idx+len(marker):]
	if end := strings.LastIndex(candidate, "Respond ONLY"); end >= 0 {
		candidate = candidate[:end]
	}
	return strings.TrimSpace(candidate)
}

func testPipeline(provider ai.Provider, count, workers int) *Pipeline {
	return &Pipeline{provider: provider, sampleCount: count, sampleWorkers: workers}
}

func testRequest() *AnalysisRequest {
	return &AnalysisRequest{
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		MIMEType:  "image/jpeg",
	}
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	p := testPipeline(nil, 3, 1)

	result := p.Analyze(context.Background(), testRequest(), nil)

	assert.True(t, result.IsError())
	assert.Equal(t, msgNotConfigured, result.Error)
}

func TestAnalyzeNotFood(t *testing.T) {
	f := &fakeProvider{gateReply: "false"}
	p := testPipeline(f, 3, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.True(t, result.IsError())
	assert.Equal(t, msgNotFood, result.Error)
	assert.Equal(t, 1, f.callCount("gate"))
	assert.Zero(t, f.callCount("sample"), "non-food photos must not reach the sampling fan-out")
}

func TestAnalyzeMergesCandidates(t *testing.T) {
	f := &fakeProvider{
		gateReply: "true",
		samples: []sampleScript{
			{reply: candChickenRice},
			{reply: candChickenRiceBigger},
		},
		mergeReply: mergedChickenRice,
	}
	p := testPipeline(f, 2, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.False(t, result.IsError())
	assert.Equal(t, "Chicken rice bowl", result.MealDescription)
	assert.Equal(t, FlexibleFloat64(620), result.TotalEstimatedCalories)
	assert.True(t, strings.HasSuffix(result.AssumptionsMade, "merged from 2 analyses"), "got %q", result.AssumptionsMade)

	assert.Equal(t, 1, f.callCount("gate"))
	assert.Equal(t, 2, f.callCount("sample"))
	assert.Equal(t, 1, f.callCount("merge"))
	// One confirm-or-correct pass per sample plus one for the merge reply.
	assert.Equal(t, 3, f.callCount("correction"))
}

func TestAnalyzeGateErrorFailsOpen(t *testing.T) {
	f := &fakeProvider{
		gateErr: errors.New("googleapi: Error 429: rate limited"),
		samples: []sampleScript{{reply: candChickenRice}},
	}
	p := testPipeline(f, 1, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.False(t, result.IsError(), "a failed gate call must not block the analysis")
	assert.Equal(t, "Chicken rice bowl", result.MealDescription)
	// A single candidate is returned unchanged, without a consensus note.
	assert.Equal(t, "Assumed no added oil.", result.AssumptionsMade)
}

func TestAnalyzeAllSamplesFailed(t *testing.T) {
	callErr := errors.New("connection refused")
	f := &fakeProvider{
		gateReply: "true",
		samples: []sampleScript{
			{err: callErr},
			{err: callErr},
			{err: callErr},
		},
	}
	p := testPipeline(f, 3, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.True(t, result.IsError())
	assert.Equal(t, msgAllSamplesFailed, result.Error)
	assert.Zero(t, f.callCount("merge"), "reduction must not run without candidates")
}

func TestAnalyzeDropsErrorShapedCandidates(t *testing.T) {
	// A reply that parses fine but carries an error instead of a breakdown
	// must be discarded, not treated as a valid candidate.
	errorShaped := `{"error":"I cannot determine the food in this image."}`
	f := &fakeProvider{
		gateReply: "true",
		samples: []sampleScript{
			{reply: errorShaped},
			{reply: errorShaped},
		},
	}
	p := testPipeline(f, 2, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.True(t, result.IsError())
	assert.Equal(t, msgAllSamplesFailed, result.Error)
}

func TestAnalyzeMergeFailureFallsBackToDeterministic(t *testing.T) {
	f := &fakeProvider{
		gateReply: "true",
		samples: []sampleScript{
			{reply: candChickenRice},
			{reply: candChickenRice},
		},
		mergeErr: errors.New("model overloaded"),
	}
	p := testPipeline(f, 2, 1)

	result := p.Analyze(context.Background(), testRequest(), common.NewRequestContext("u1"))

	assert.False(t, result.IsError())
	assert.Equal(t, "Chicken rice bowl", result.MealDescription)
	assert.True(t, strings.HasSuffix(result.AssumptionsMade, "consensus from 2/2 analyses"), "got %q", result.AssumptionsMade)
}

func TestAnalyzeAccumulatesTokenUsage(t *testing.T) {
	usage := &common.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}
	f := &fakeProvider{
		gateReply: "true",
		samples: []sampleScript{
			{reply: candChickenRice},
			{reply: candChickenRiceBigger},
		},
		mergeReply: mergedChickenRice,
		usage:      usage,
	}
	p := testPipeline(f, 2, 1)
	reqCtx := common.NewRequestContext("u1")

	p.Analyze(context.Background(), testRequest(), reqCtx)

	// gate + 2 samples + 3 corrections + merge = 7 calls at 150 tokens each.
	assert.Equal(t, 7*150, reqCtx.TotalTokens.TotalTokens)
	assert.Equal(t, 7*100, reqCtx.TotalTokens.InputTokens)
	assert.Equal(t, 7*50, reqCtx.TotalTokens.OutputTokens)
}

func TestAnalyzeWithNilRequestContext(t *testing.T) {
	f := &fakeProvider{
		gateReply:  "true",
		samples:    []sampleScript{{reply: candChickenRice}},
		mergeReply: mergedChickenRice,
	}
	p := testPipeline(f, 1, 1)

	result := p.Analyze(context.Background(), testRequest(), nil)

	assert.False(t, result.IsError())
	assert.Equal(t, "Chicken rice bowl", result.MealDescription)
}
