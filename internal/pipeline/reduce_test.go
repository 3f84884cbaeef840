package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bosocmputer/meal_calorie_gemini/internal/common"
)

func breakdown(description string, total float64, confidence float64) *AnalysisResult {
	return &AnalysisResult{
		MealDescription:        description,
		TotalEstimatedCalories: FlexibleFloat64(total),
		Items: []FoodItem{
			{ItemName: "Item", Quantity: "1 serving", Calories: FlexibleFloat64(total)},
		},
		ConfidenceScore: FlexibleFloat64(confidence),
	}
}

func TestReduceDeterministicMajority(t *testing.T) {
	// Two of three candidates agree modulo case and whitespace.
	agree1 := breakdown("Pad Thai ", 640, 0.7)
	agree2 := breakdown("pad thai", 640, 0.9)
	outlier := breakdown("Fried noodles", 580, 0.95)

	winner := reduceDeterministic([]*AnalysisResult{agree1, outlier, agree2})

	// The earliest member of the winning bucket is returned, original casing
	// and all, regardless of the outlier's higher confidence.
	assert.Equal(t, "Pad Thai ", winner.MealDescription)
	assert.Equal(t, FlexibleFloat64(640), winner.TotalEstimatedCalories)
	assert.Equal(t, "consensus from 2/3 analyses", winner.AssumptionsMade)

	// Inputs must not be mutated: the winner is a copy.
	assert.Empty(t, agree1.AssumptionsMade)
}

func TestReduceDeterministicNoAgreement(t *testing.T) {
	a := breakdown("Green curry", 450, 0.6)
	b := breakdown("Red curry", 520, 0.9)
	c := breakdown("Massaman curry", 610, 0.7)

	winner := reduceDeterministic([]*AnalysisResult{a, b, c})

	assert.Equal(t, "Red curry", winner.MealDescription)
	assert.Equal(t, "consensus from 1/3 analyses", winner.AssumptionsMade)
}

func TestReduceDeterministicConfidenceTie(t *testing.T) {
	a := breakdown("Green curry", 450, 0.7)
	b := breakdown("Red curry", 520, 0.7)

	winner := reduceDeterministic([]*AnalysisResult{a, b})

	// Equal confidence everywhere: the earlier candidate wins.
	assert.Equal(t, "Green curry", winner.MealDescription)
	assert.Equal(t, "consensus from 1/2 analyses", winner.AssumptionsMade)
}

func TestReduceDeterministicBucketTie(t *testing.T) {
	a1 := breakdown("Green curry", 450, 0.5)
	a2 := breakdown("green curry", 450, 0.5)
	b1 := breakdown("Red curry", 520, 0.9)
	b2 := breakdown("red curry", 520, 0.9)

	winner := reduceDeterministic([]*AnalysisResult{a1, a2, b1, b2})

	// Both buckets have two members; the bucket seen first wins.
	assert.Equal(t, "Green curry", winner.MealDescription)
	assert.Equal(t, "consensus from 2/4 analyses", winner.AssumptionsMade)
}

func TestReduceDeterministicAppendsToExistingAssumptions(t *testing.T) {
	a := breakdown("Omelette", 300, 0.8)
	a.AssumptionsMade = "Assumed two eggs."
	b := breakdown("Omelette", 300, 0.8)
	b.AssumptionsMade = "Assumed two eggs."

	winner := reduceDeterministic([]*AnalysisResult{a, b})

	assert.Equal(t, "Assumed two eggs.; consensus from 2/2 analyses", winner.AssumptionsMade)
}

func TestSignatureNormalization(t *testing.T) {
	a := breakdown("  Pad Thai ", 640, 0.1)
	b := breakdown("pad thai", 640, 0.9)
	assert.Equal(t, signature(a), signature(b), "case and whitespace must not break agreement")

	c := breakdown("pad thai", 650, 0.9)
	assert.NotEqual(t, signature(a), signature(c), "different totals must not agree")

	d := breakdown("pad thai", 640, 0.9)
	d.Items[0].ItemName = "Noodles"
	assert.NotEqual(t, signature(a), signature(d), "different item names must not agree")

	// Confidence and assumptions are deliberately not part of the identity.
	e := breakdown("pad thai", 640, 0.2)
	e.AssumptionsMade = "something else"
	assert.Equal(t, signature(a), signature(e))
}

func TestReduceCandidatesSinglePassesThrough(t *testing.T) {
	p := testPipeline(nil, 1, 1)
	only := breakdown("Caesar salad", 380, 0.8)

	result := p.reduceCandidates(context.Background(), []*AnalysisResult{only}, common.NewRequestContext(""))

	assert.Same(t, only, result, "a single candidate must be returned unchanged")
	assert.Empty(t, result.AssumptionsMade)
}

func TestReduceCandidatesWithoutProviderIsDeterministic(t *testing.T) {
	p := testPipeline(nil, 2, 1)
	a := breakdown("Ramen", 550, 0.8)
	b := breakdown("ramen", 550, 0.6)

	result := p.reduceCandidates(context.Background(), []*AnalysisResult{a, b}, common.NewRequestContext(""))

	assert.Equal(t, "Ramen", result.MealDescription)
	assert.Equal(t, "consensus from 2/2 analyses", result.AssumptionsMade)
}

func TestMergeWithModelRejectsErrorShape(t *testing.T) {
	// A merge reply carrying an error must hand control to the deterministic
	// reducer instead of surfacing the error.
	f := &fakeProvider{
		gateReply:  "true",
		mergeReply: `{"error":"cannot merge these analyses"}`,
	}
	p := testPipeline(f, 2, 1)
	a := breakdown("Burrito", 700, 0.8)
	b := breakdown("Burrito", 700, 0.7)

	result := p.reduceCandidates(context.Background(), []*AnalysisResult{a, b}, common.NewRequestContext(""))

	assert.False(t, result.IsError())
	assert.Equal(t, "Burrito", result.MealDescription)
	assert.Equal(t, "consensus from 2/2 analyses", result.AssumptionsMade)
}
