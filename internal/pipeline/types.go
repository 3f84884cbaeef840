// types.go - Data model for meal photo analysis results

package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleFloat64 can unmarshal from both string and number.
// The model sometimes quotes numeric values ("250" instead of 250), so every
// numeric field parsed out of a model reply goes through this type.
type FlexibleFloat64 float64

func (f *FlexibleFloat64) UnmarshalJSON(data []byte) error {
	// Handle null
	if string(data) == "null" {
		*f = 0
		return nil
	}

	// Try as number first
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexibleFloat64(num)
		return nil
	}

	// Try as string
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("cannot unmarshal %s as float64 or string", string(data))
	}

	// Handle empty string
	str = strings.TrimSpace(str)
	if str == "" {
		*f = 0
		return nil
	}

	num, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("cannot parse string %q as float64: %w", str, err)
	}

	*f = FlexibleFloat64(num)
	return nil
}

// AnalysisRequest is the immutable input to one pipeline run.
type AnalysisRequest struct {
	ImageData   []byte
	MIMEType    string
	MealContext string // optional free-text description from the user
}

// FoodItem is a single recognized food with best-effort nutrition estimates.
// Numeric fields are estimates only and are never validated against Calories.
type FoodItem struct {
	ItemName string          `json:"itemName" bson:"itemName"`
	Quantity string          `json:"quantity" bson:"quantity"` // free-form, e.g. "100g" or "1 cup"
	Calories FlexibleFloat64 `json:"calories" bson:"calories"`
	ProteinG FlexibleFloat64 `json:"protein_g,omitempty" bson:"protein_g,omitempty"`
	CarbsG   FlexibleFloat64 `json:"carbs_g,omitempty" bson:"carbs_g,omitempty"`
	FatG     FlexibleFloat64 `json:"fat_g,omitempty" bson:"fat_g,omitempty"`
}

// AnalysisResult is the single answer produced by one pipeline run.
// A non-empty Error marks the failure variant; every other field is then
// zeroed. Item calories SHOULD sum to TotalEstimatedCalories, but the model
// is not forced to be consistent, so consumers must tolerate mismatches.
type AnalysisResult struct {
	MealDescription        string          `json:"mealDescription,omitempty" bson:"mealDescription,omitempty"`
	TotalEstimatedCalories FlexibleFloat64 `json:"totalEstimatedCalories" bson:"totalEstimatedCalories"`
	Items                  []FoodItem      `json:"items" bson:"items"`
	ConfidenceScore        FlexibleFloat64 `json:"confidenceScore,omitempty" bson:"confidenceScore,omitempty"`
	AssumptionsMade        string          `json:"assumptionsMade,omitempty" bson:"assumptionsMade,omitempty"`
	Error                  string          `json:"error,omitempty" bson:"error,omitempty"`
}

// IsError reports whether the result is the failure variant.
func (r *AnalysisResult) IsError() bool {
	return r != nil && r.Error != ""
}

// User-facing messages for the fixed failure shapes.
const (
	msgNotFood = "This does not appear to be a photo of food. Please upload a clear photo of a meal."

	msgAllSamplesFailed = "Failed to get any valid calorie breakdown from the image after multiple attempts. " +
		"Please try again with a clearer photo."

	msgNotConfigured = "Analysis service is not configured. Please set GEMINI_API_KEY."
)

// ErrorResult builds the failure variant: zero calories, empty items.
func ErrorResult(msg string) *AnalysisResult {
	return &AnalysisResult{
		TotalEstimatedCalories: 0,
		Items:                  []FoodItem{},
		Error:                  msg,
	}
}

// NotFoodResult is the fixed answer when the image gate decides the photo
// does not show food.
func NotFoodResult() *AnalysisResult { return ErrorResult(msgNotFood) }

// AllSamplesFailedResult is the fixed answer when no sample produced a valid
// candidate.
func AllSamplesFailedResult() *AnalysisResult { return ErrorResult(msgAllSamplesFailed) }

// NotConfiguredResult is the fixed answer when no analysis provider is
// configured.
func NotConfiguredResult() *AnalysisResult { return ErrorResult(msgNotConfigured) }

// appendAssumption adds a note to AssumptionsMade so that the note is always
// the suffix of the field.
func appendAssumption(r *AnalysisResult, note string) {
	if r.AssumptionsMade == "" {
		r.AssumptionsMade = note
		return
	}
	r.AssumptionsMade = r.AssumptionsMade + "; " + note
}
