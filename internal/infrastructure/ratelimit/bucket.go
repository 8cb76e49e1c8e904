// Package ratelimit implements the per-destination-domain token-bucket
// dispatcher that gates every outbound platform call into two independent
// tiers: general REST and inventory. The registry is an explicitly
// constructed component injected into callers, never a package singleton, so
// tests can instantiate isolated instances.
package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket is a continuously refilling token bucket. Capacity and refill
// rate are fixed at construction; fractional token accrual is tracked so slow
// refill rates (e.g. 2/s) behave correctly between calls.
type tokenBucket struct {
	mu sync.Mutex

	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// newTokenBucket creates a full bucket with the given capacity and per-second
// refill rate. The now func is injectable for tests.
func newTokenBucket(capacity int, perSecond float64, now func() time.Time) *tokenBucket {
	if now == nil {
		now = time.Now
	}
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: perSecond,
		tokens:     float64(capacity),
		lastRefill: now(),
		now:        now,
	}
}

// take consumes one token if available and returns true, or returns false
// together with the wait until the next token accrues.
func (b *tokenBucket) take() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	deficit := 1 - b.tokens
	wait := time.Duration(deficit / b.refillRate * float64(time.Second))
	return false, wait
}

// refill accrues tokens for the elapsed time since the last refill.
func (b *tokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// available returns the current whole-token count, refilling first.
func (b *tokenBucket) available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return int(b.tokens)
}
