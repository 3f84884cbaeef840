// prompts.go - Centralized prompt templates for the analysis pipeline.
//
// Every template demands a bare reply (one word, or one JSON object) because
// everything downstream of the model is a parser. The analysis prompt is
// shared verbatim by all samples of one run; only the optional user context
// varies between runs.

package ai

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

// buildPrompt normalizes a template (dedent + trim) and substitutes args.
func buildPrompt(text string, args ...interface{}) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), args...)
}

// ========== Image Gate ==========

const foodGatePromptTemplate = `
	Look at the image and decide whether it shows food or a meal.
	Respond with exactly one word, all lowercase: true if the image shows food or a meal, false if it does not.
	Do not add punctuation, quotes, or any explanation.`

// FoodGatePrompt returns the yes/no classification prompt used by the image
// gate ahead of the full analysis.
func FoodGatePrompt() string {
	return strings.TrimSpace(dedent.Dedent(foodGatePromptTemplate))
}

// ========== Calorie Analysis ==========

const analysisPromptTemplate = `
	You are a nutrition analysis assistant. Analyze the meal shown in the image and estimate its calorie and macronutrient breakdown.
	%s
	Respond with a single JSON object using EXACTLY these keys:
	- "mealDescription": string, a short description of the meal
	- "totalEstimatedCalories": number, the estimated total calories of the whole meal
	- "items": array with one object per distinct food item, each with keys "itemName" (string), "quantity" (string, e.g. "100g" or "1 cup"), "calories" (number), "protein_g" (number), "carbs_g" (number), "fat_g" (number)
	- "confidenceScore": number between 0 and 1
	- "assumptionsMade": string describing assumptions about portion sizes, preparation, or hidden ingredients

	Example response:
	{"mealDescription":"Grilled chicken breast with steamed rice","totalEstimatedCalories":520,"items":[{"itemName":"Grilled chicken breast","quantity":"150g","calories":250,"protein_g":46,"carbs_g":0,"fat_g":5},{"itemName":"Steamed white rice","quantity":"1 cup","calories":270,"protein_g":5,"carbs_g":59,"fat_g":1}],"confidenceScore":0.8,"assumptionsMade":"Assumed no cooking oil beyond light grilling."}

	Respond ONLY with the JSON object. No markdown fences, no explanation before or after.`

// BuildAnalysisPrompt returns the strict-format analysis instruction,
// optionally carrying the user's own description of the meal. The prompt is
// identical for every sample of a run.
func BuildAnalysisPrompt(mealContext string) string {
	contextLine := ""
	if trimmed := strings.TrimSpace(mealContext); trimmed != "" {
		contextLine = fmt.Sprintf("The user describes the meal as: %q. Use the description to resolve what the photo alone cannot show.", trimmed)
	}
	return buildPrompt(analysisPromptTemplate, contextLine)
}

// ========== Confirm-or-Correct ==========

const correctionPromptTemplate = `
	The following text is supposed to be a single JSON object with EXACTLY these keys:
	"mealDescription" (string), "totalEstimatedCalories" (number), "items" (array of objects with "itemName" string, "quantity" string, "calories" number, "protein_g" number, "carbs_g" number, "fat_g" number), "confidenceScore" (number between 0 and 1), "assumptionsMade" (string).

	If the text already conforms, return it unchanged. If it does not, correct it: fix the syntax, rename wrong keys, coerce wrong types, and fill missing required keys with sensible defaults. Do not invent food items that are not in the text.

	Text:
	%s

	Respond ONLY with the JSON object. No markdown fences, no explanation.`

// BuildCorrectionPrompt returns the confirm-or-correct instruction for one
// cleaned candidate.
func BuildCorrectionPrompt(candidate string) string {
	return buildPrompt(correctionPromptTemplate, candidate)
}

// ========== Consensus Merge ==========

const mergePromptTemplate = `
	You are given %d independent nutrition analyses of the SAME meal photo, as a JSON array.
	Synthesize them into ONE consolidated analysis:
	- Average the numeric fields (totalEstimatedCalories, calories, protein_g, carbs_g, fat_g, confidenceScore).
	- Union the food items and fold together entries that clearly describe the same food.
	- Keep the meal description most consistent with the majority of the analyses.
	- Combine the assumptions, dropping repeats.

	Analyses:
	%s

	Respond ONLY with a single JSON object using the same keys as the input analyses (mealDescription, totalEstimatedCalories, items, confidenceScore, assumptionsMade). No markdown fences, no explanation.`

// BuildMergePrompt returns the merge instruction over the serialized
// candidates.
func BuildMergePrompt(candidatesJSON string, count int) string {
	return buildPrompt(mergePromptTemplate, count, candidatesJSON)
}
