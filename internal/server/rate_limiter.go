package server

import (
	"sync"
	"time"
)

// tokenBucket throttles inbound frames per connection so one client cannot
// monopolize the event handlers.
type tokenBucket struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newTokenBucket(capacity int, interval time.Duration) *tokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &tokenBucket{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: time.Now(),
	}
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now

	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
	}

	if tb.tokens < 1 {
		return false
	}

	tb.tokens--
	return true
}
