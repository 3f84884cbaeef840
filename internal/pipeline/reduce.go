// reduce.go - Consensus reduction of validated candidates.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bosocmputer/meal_calorie_gemini/internal/ai"
	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

// reduceCandidates folds 1..N validated candidates into exactly one result.
// A single candidate is returned unchanged. Multiple candidates go through
// the model-assisted merge first; when that is unavailable or fails, the
// deterministic reducer picks a winner. Reduction itself never fails.
func (p *Pipeline) reduceCandidates(ctx context.Context, candidates []*AnalysisResult, reqCtx *common.RequestContext) *AnalysisResult {
	if len(candidates) == 1 {
		return candidates[0]
	}

	if merged := p.mergeWithModel(ctx, candidates, reqCtx); merged != nil {
		return merged
	}
	return reduceDeterministic(candidates)
}

// mergeWithModel asks the model to synthesize one analysis out of all the
// candidates: average the numeric fields, union and deduplicate the food
// items, keep the majority-consistent description. Returns nil whenever the
// merge cannot be used, which hands the decision to the deterministic
// reducer.
func (p *Pipeline) mergeWithModel(ctx context.Context, candidates []*AnalysisResult, reqCtx *common.RequestContext) *AnalysisResult {
	if p.provider == nil {
		return nil
	}

	serialized, err := json.Marshal(candidates)
	if err != nil {
		reqCtx.LogWarning("could not serialize candidates for the merge: %v", err)
		return nil
	}

	parts := []ai.Part{ai.TextPart(ai.BuildMergePrompt(string(serialized), len(candidates)))}

	reqCtx.StartSubStep("call_ai_api")
	reply, usage, err := p.provider.GenerateContent(ctx, parts, reqCtx)
	reqCtx.EndSubStep("merge")
	reqCtx.AddTokens(usage)
	if err != nil {
		reqCtx.LogWarning("model-assisted merge failed, using deterministic reducer: %v", err)
		return nil
	}

	merged, corrUsage := p.repairAndValidate(ctx, reply, reqCtx)
	reqCtx.AddTokens(corrUsage)
	if merged == nil || merged.IsError() {
		reqCtx.LogWarning("merge reply did not survive repair, using deterministic reducer")
		return nil
	}

	appendAssumption(merged, fmt.Sprintf("merged from %d analyses", len(candidates)))
	return merged
}

// reduceDeterministic picks the winner without any model help.
//
// Candidates are bucketed by a normalized signature; the most frequent
// signature wins and the earliest candidate of the winning bucket is
// returned, so ties always break toward the earlier call. When every
// candidate is unique the highest confidence wins instead, again first-seen
// on ties. The winner is annotated with the size of its agreeing bucket.
func reduceDeterministic(candidates []*AnalysisResult) *AnalysisResult {
	counts := make(map[string]int, len(candidates))
	firstSeen := make(map[string]int, len(candidates))
	for i, c := range candidates {
		sig := signature(c)
		counts[sig]++
		if _, seen := firstSeen[sig]; !seen {
			firstSeen[sig] = i
		}
	}

	bestIdx, bestCount := -1, 0
	for i, c := range candidates {
		sig := signature(c)
		if firstSeen[sig] != i {
			continue // only the first of each bucket competes
		}
		if counts[sig] > bestCount {
			bestIdx, bestCount = i, counts[sig]
		}
	}

	if bestCount == 1 {
		// No two candidates agree: fall back to the model's own confidence.
		bestIdx = 0
		for i, c := range candidates {
			if c.ConfidenceScore > candidates[bestIdx].ConfidenceScore {
				bestIdx = i
			}
		}
	}

	winner := *candidates[bestIdx]
	k := counts[signature(candidates[bestIdx])]
	appendAssumption(&winner, fmt.Sprintf("consensus from %d/%d analyses", k, len(candidates)))
	return &winner
}

// signature builds the normalized identity used to detect agreement between
// candidates: meal description, total calories, and the ordered item
// name/calorie pairs, case- and whitespace-insensitive.
func signature(r *AnalysisResult) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(r.MealDescription)))
	b.WriteString("|")
	b.WriteString(formatCalories(r.TotalEstimatedCalories))
	for _, item := range r.Items {
		b.WriteString("|")
		b.WriteString(strings.ToLower(strings.TrimSpace(item.ItemName)))
		b.WriteString(":")
		b.WriteString(formatCalories(item.Calories))
	}
	return b.String()
}

func formatCalories(v FlexibleFloat64) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}
