package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/pipeline"
)

func enableCache(t *testing.T) {
	t.Helper()
	configs.CACHE_ENABLED = true
	configs.CACHE_TTL_MINUTES = 60
	ClearAnalysisCache()
	t.Cleanup(ClearAnalysisCache)
}

func sampleResult() *pipeline.AnalysisResult {
	return &pipeline.AnalysisResult{
		MealDescription:        "Tom yum soup",
		TotalEstimatedCalories: 230,
		Items: []pipeline.FoodItem{
			{ItemName: "Tom yum soup", Quantity: "1 bowl", Calories: 230},
		},
		ConfidenceScore: 0.8,
	}
}

func TestAnalysisCacheRoundTrip(t *testing.T) {
	enableCache(t)

	image := []byte("fake image bytes")
	key := AnalysisCacheKey(image, "dinner")

	assert.Nil(t, GetCachedAnalysis(key))

	PutCachedAnalysis(key, sampleResult())
	got := GetCachedAnalysis(key)

	if assert.NotNil(t, got) {
		assert.Equal(t, "Tom yum soup", got.MealDescription)
	}
}

func TestAnalysisCacheReturnsCopy(t *testing.T) {
	enableCache(t)

	key := AnalysisCacheKey([]byte("img"), "")
	PutCachedAnalysis(key, sampleResult())

	first := GetCachedAnalysis(key)
	first.MealDescription = "mutated by caller"

	second := GetCachedAnalysis(key)
	assert.Equal(t, "Tom yum soup", second.MealDescription, "callers must not be able to poison the cache")
}

func TestAnalysisCacheKeyDependsOnContext(t *testing.T) {
	image := []byte("same image")

	plain := AnalysisCacheKey(image, "")
	withContext := AnalysisCacheKey(image, "half portion")

	assert.NotEqual(t, plain, withContext, "the same photo with different context is a different analysis")
	assert.Equal(t, plain, AnalysisCacheKey([]byte("same image"), ""))
}

func TestAnalysisCacheKeyLengthPrefix(t *testing.T) {
	// The key covers the image length, so moving bytes between the image and
	// the context must not collide.
	a := AnalysisCacheKey([]byte("abc"), "def")
	b := AnalysisCacheKey([]byte("abcd"), "ef")
	assert.NotEqual(t, a, b)
}

func TestAnalysisCacheSkipsErrorResults(t *testing.T) {
	enableCache(t)

	key := AnalysisCacheKey([]byte("img"), "")
	PutCachedAnalysis(key, pipeline.NotFoodResult())
	assert.Nil(t, GetCachedAnalysis(key), "failure results must never be cached")

	PutCachedAnalysis(key, nil)
	assert.Nil(t, GetCachedAnalysis(key))
}

func TestAnalysisCacheDisabled(t *testing.T) {
	enableCache(t)
	key := AnalysisCacheKey([]byte("img"), "")
	PutCachedAnalysis(key, sampleResult())

	configs.CACHE_ENABLED = false
	assert.Nil(t, GetCachedAnalysis(key), "a disabled cache must always miss")
}

func TestAnalysisCacheExpiry(t *testing.T) {
	enableCache(t)

	key := AnalysisCacheKey([]byte("img"), "")
	PutCachedAnalysis(key, sampleResult())

	// Backdate the entry past the TTL.
	cacheMutex.Lock()
	analysisCacheMap[key].storedAt = time.Now().Add(-time.Duration(configs.CACHE_TTL_MINUTES+1) * time.Minute)
	cacheMutex.Unlock()

	assert.Nil(t, GetCachedAnalysis(key))
}
