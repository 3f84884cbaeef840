// cache.go - In-memory cache of analysis results
//
// A repeated upload of the exact same photo with the same context within the
// TTL answers from memory instead of re-billing a dozen model calls. Results
// are immutable once produced, so the only freshness concern is the TTL.

package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/pipeline"
)

type cachedAnalysis struct {
	result   pipeline.AnalysisResult
	storedAt time.Time
}

// Global cache map: key -> cached result
var analysisCacheMap = make(map[string]*cachedAnalysis)
var cacheMutex sync.RWMutex

// AnalysisCacheKey derives the cache key from the exact image bytes and the
// meal context. The image length is folded in ahead of the bytes so the
// image/context boundary cannot be shifted between two inputs that
// concatenate to the same byte stream.
func AnalysisCacheKey(imageData []byte, mealContext string) string {
	h := sha256.New()
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(imageData)))
	h.Write(lenBuf[:])
	h.Write(imageData)
	h.Write([]byte(mealContext))
	return hex.EncodeToString(h.Sum(nil))
}

// GetCachedAnalysis returns a copy of the cached result for the key, or nil
// on a miss.
func GetCachedAnalysis(key string) *pipeline.AnalysisResult {
	if !configs.CACHE_ENABLED {
		return nil
	}

	cacheMutex.RLock()
	entry, exists := analysisCacheMap[key]
	cacheMutex.RUnlock()

	if !exists || time.Since(entry.storedAt) > cacheTTL() {
		return nil
	}

	result := entry.result
	return &result
}

// PutCachedAnalysis stores a successful result. Error results are never
// cached: a transient upstream failure must not be replayed for the whole
// TTL.
func PutCachedAnalysis(key string, result *pipeline.AnalysisResult) {
	if !configs.CACHE_ENABLED || result == nil || result.IsError() {
		return
	}

	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	// Double-check under the write lock; a concurrent request may have
	// stored a fresher entry already.
	if entry, exists := analysisCacheMap[key]; exists && time.Since(entry.storedAt) < cacheTTL() {
		return
	}

	analysisCacheMap[key] = &cachedAnalysis{
		result:   *result,
		storedAt: time.Now(),
	}
}

// ClearAnalysisCache removes all cached results.
func ClearAnalysisCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	analysisCacheMap = make(map[string]*cachedAnalysis)
}

func cacheTTL() time.Duration {
	minutes := configs.CACHE_TTL_MINUTES
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}
