package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitConsumesTokens(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	// Three tokens available: all three must pass without blocking.
	done := make(chan struct{})
	go func() {
		rl.Wait()
		rl.Wait()
		rl.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked even though tokens were available")
	}

	rl.mu.Lock()
	assert.Equal(t, 0, rl.tokens)
	rl.mu.Unlock()
}

func TestWaitRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	rl.Wait()
	rl.Wait() // bucket drained

	// Backdate the refill clock instead of sleeping for real.
	rl.mu.Lock()
	rl.lastRefillTime = time.Now().Add(-120 * time.Millisecond)
	rl.mu.Unlock()

	done := make(chan struct{})
	go func() {
		rl.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not refill after the refill interval elapsed")
	}
}

func TestRefillCapsAtMaxTokens(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Millisecond)

	// Pretend a long idle period: far more refill intervals than capacity.
	rl.mu.Lock()
	rl.tokens = 0
	rl.lastRefillTime = time.Now().Add(-time.Minute)
	rl.mu.Unlock()

	rl.Wait()

	rl.mu.Lock()
	assert.Equal(t, 1, rl.tokens, "refill must cap at maxTokens before the Wait consumes one")
	rl.mu.Unlock()
}
