package ratelimit

import (
	"context"
	"time"
)

// Limiter holds one token bucket per provider. Providers without a
// bucket are never limited. Add all buckets at startup; the map is
// read-only afterwards.
type Limiter struct {
	buckets map[string]*TokenBucket
}

func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*TokenBucket)}
}

// Add installs a bucket for providerID. Startup-time only.
func (l *Limiter) Add(providerID string, tb *TokenBucket) {
	l.buckets[providerID] = tb
}

// AddRPM installs a bucket from a requests-per-minute budget.
func (l *Limiter) AddRPM(providerID string, rpm, burst int) {
	if rpm <= 0 {
		return
	}
	l.Add(providerID, NewTokenBucket(float64(rpm)/60.0, burst))
}

// Acquire consumes a permit for providerID when one is available.
// Never blocks.
func (l *Limiter) Acquire(providerID string) (ok bool, retryAfter time.Duration) {
	tb, found := l.buckets[providerID]
	if !found {
		return true, 0
	}
	return tb.TryAcquire()
}

// Wait blocks until a permit for providerID is acquired or ctx is done.
func (l *Limiter) Wait(ctx context.Context, providerID string) error {
	tb, found := l.buckets[providerID]
	if !found {
		return nil
	}
	return tb.Wait(ctx)
}
