// rate_limiter.go - Per-caller request rate limiting.
package main

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate int
	period     time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a bucket holding maxTokens that regains
// refillRate tokens every period.
func NewRateLimiter(maxTokens, refillRate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		period:     period,
		lastRefill: time.Now(),
	}
}

// Allow reports whether one request may proceed, consuming a token.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.period {
		refills := int(elapsed / rl.period)
		rl.tokens += refills * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(refills) * rl.period)
	}

	if rl.tokens <= 0 {
		return false
	}
	rl.tokens--
	return true
}

// CallerRateLimiter keeps one bucket per caller address.
type CallerRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*RateLimiter
	maxTokens  int
	refillRate int
	period     time.Duration
}

// NewCallerRateLimiter creates a per-caller rate limiter.
func NewCallerRateLimiter(maxTokens, refillRate int, period time.Duration) *CallerRateLimiter {
	return &CallerRateLimiter{
		limiters:   make(map[string]*RateLimiter),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		period:     period,
	}
}

// Allow reports whether the caller may proceed.
func (crl *CallerRateLimiter) Allow(caller string) bool {
	crl.mu.Lock()
	limiter, ok := crl.limiters[caller]
	if !ok {
		limiter = NewRateLimiter(crl.maxTokens, crl.refillRate, crl.period)
		crl.limiters[caller] = limiter
	}
	crl.mu.Unlock()
	return limiter.Allow()
}
