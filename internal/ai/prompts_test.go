package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoodGatePrompt(t *testing.T) {
	prompt := FoodGatePrompt()

	assert.Contains(t, prompt, "exactly one word")
	assert.Contains(t, prompt, "true")
	assert.Contains(t, prompt, "false")
	assert.NotContains(t, prompt, "\t", "dedent must remove the template indentation")
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := BuildAnalysisPrompt("")

	// The downstream parser depends on these exact key names.
	for _, key := range []string{
		"mealDescription",
		"totalEstimatedCalories",
		"items",
		"itemName",
		"quantity",
		"calories",
		"protein_g",
		"carbs_g",
		"fat_g",
		"confidenceScore",
		"assumptionsMade",
	} {
		assert.Contains(t, prompt, `"`+key+`"`, "missing key %q", key)
	}
	assert.Contains(t, prompt, "Respond ONLY with the JSON object")
	assert.NotContains(t, prompt, "\t")
}

func TestBuildAnalysisPromptMealContext(t *testing.T) {
	tests := map[string]struct {
		mealContext string
		wantLine    bool
	}{
		"with context":       {mealContext: "leftover pizza, two slices", wantLine: true},
		"without context":    {mealContext: "", wantLine: false},
		"whitespace context": {mealContext: "   \n", wantLine: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			prompt := BuildAnalysisPrompt(tc.mealContext)
			if tc.wantLine {
				assert.Contains(t, prompt, `The user describes the meal as: "leftover pizza, two slices".`)
			} else {
				assert.NotContains(t, prompt, "The user describes the meal as")
			}
		})
	}
}

func TestBuildAnalysisPromptIsStable(t *testing.T) {
	// Every sample of a run must carry the identical instruction text.
	first := BuildAnalysisPrompt("bowl of ramen")
	second := BuildAnalysisPrompt("bowl of ramen")
	assert.Equal(t, first, second)
}

func TestBuildCorrectionPrompt(t *testing.T) {
	candidate := `{"mealDescription":"toast","totalEstimatedCalories":180}`
	prompt := BuildCorrectionPrompt(candidate)

	assert.Contains(t, prompt, "If the text already conforms, return it unchanged")
	assert.Contains(t, prompt, candidate)
	assert.True(t, strings.Contains(prompt, "Text:\n"+candidate), "the candidate must follow the Text: marker")
}

func TestBuildMergePrompt(t *testing.T) {
	candidatesJSON := `[{"mealDescription":"toast"},{"mealDescription":"toast with butter"}]`
	prompt := BuildMergePrompt(candidatesJSON, 2)

	assert.Contains(t, prompt, "2 independent nutrition analyses")
	assert.Contains(t, prompt, candidatesJSON)
	assert.Contains(t, prompt, "Average the numeric fields")
}
