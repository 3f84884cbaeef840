// rate_limiter.go - Rate limiting to prevent hitting Gemini API limits

package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens         int
	maxTokens      int
	refillRate     time.Duration
	lastRefillTime time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// maxTokens: maximum number of concurrent requests
// refillRate: time between token refills
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// Wait blocks until a token is available
func (rl *RateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Refill tokens based on time elapsed
	now := time.Now()
	elapsed := now.Sub(rl.lastRefillTime)
	tokensToAdd := int(elapsed / rl.refillRate)

	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefillTime = now
	}

	// Wait until we have a token
	for rl.tokens <= 0 {
		rl.mu.Unlock()
		time.Sleep(100 * time.Millisecond)
		rl.mu.Lock()

		// Refill again after waiting
		now = time.Now()
		elapsed = now.Sub(rl.lastRefillTime)
		tokensToAdd = int(elapsed / rl.refillRate)

		if tokensToAdd > 0 {
			rl.tokens += tokensToAdd
			if rl.tokens > rl.maxTokens {
				rl.tokens = rl.maxTokens
			}
			rl.lastRefillTime = now
		}
	}

	// Consume one token
	rl.tokens--
}

// Global rate limiter for the AI API
// Free-tier flash models allow ~15 RPM. One analyze request makes at most
// 13 calls: 1 image gate + 5 samples + 5 correction passes + 1 merge + 1
// correction of the merge.
var globalRateLimiter = NewRateLimiter(13, 5*time.Second)

// WaitForRateLimit waits if we're hitting rate limits
func WaitForRateLimit() {
	globalRateLimiter.Wait()
}
