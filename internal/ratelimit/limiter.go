// Package ratelimit throttles outbound exchange requests so the
// adapter stays inside the exchange's published request budget.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket limiter sized from a requests-per-period
// budget.
type Limiter struct {
	limiter *rate.Limiter
	burst   int
	waited  atomic.Int64
	denied  atomic.Int64
}

// New creates a Limiter allowing the given number of requests per
// period, with the full budget available as burst.
func New(requests int, period time.Duration) *Limiter {
	rps := float64(requests) / period.Seconds()
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), requests),
		burst:   requests,
	}
}

// Wait blocks until a request is allowed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		l.denied.Add(1)
		return err
	}
	l.waited.Add(1)
	return nil
}

// Allow reports whether a request may proceed immediately.
func (l *Limiter) Allow() bool {
	allowed := l.limiter.Allow()
	if allowed {
		l.waited.Add(1)
	} else {
		l.denied.Add(1)
	}
	return allowed
}

// SetLimit replaces the request budget.
func (l *Limiter) SetLimit(requests int, period time.Duration) {
	rps := float64(requests) / period.Seconds()
	l.limiter.SetLimit(rate.Limit(rps))
	l.limiter.SetBurst(requests)
}

// Stats returns how many requests have been admitted and denied.
func (l *Limiter) Stats() (admitted, denied int64) {
	return l.waited.Load(), l.denied.Load()
}
