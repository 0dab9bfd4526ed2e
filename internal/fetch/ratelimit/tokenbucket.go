// Package ratelimit tracks per-provider request budgets with token
// buckets. The limiter is advisory: Acquire never blocks, it only tells
// the caller whether a request may go out now and how long until the
// next token otherwise. Orchestration decides whether to wait, fail
// over or give up.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// TryAcquire consumes one token when available. When the bucket is
// empty it reports the time until a token accrues.
func (tb *TokenBucket) TryAcquire() (ok bool, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	deficit := 1 - tb.tokens
	retryAfter = time.Duration(deficit / tb.rate * float64(time.Second))
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return false, retryAfter
}

// Wait blocks until one token is acquired or the context is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, retryAfter := tb.TryAcquire()
		if ok {
			return nil
		}
		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
