// Package ratelimit provides the single process-wide token bucket that
// every outbound call to the third-party racing API must acquire from
// (spec §4.A, §5). The teacher's provider clients (internal/provider/bdl,
// internal/provider/sportmonks) each construct their own
// golang.org/x/time/rate limiter scoped to one provider; this spec has a
// single upstream API shared by every fetcher, so the limiter is promoted
// to its own package and injected into the one APIClient implementation.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultCapacity and DefaultRefillPerSecond match spec §4.A: a bucket of
// 2 tokens refilling at 2 tokens/second.
const (
	DefaultCapacity        = 2
	DefaultRefillPerSecond = 2
)

// Limiter is a token bucket governing outbound API calls. The zero value
// is not usable; construct with New.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter with the given capacity and refill rate. Passing
// zero values falls back to the spec defaults.
func New(capacity int, refillPerSecond float64) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSecond <= 0 {
		refillPerSecond = DefaultRefillPerSecond
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
	}
}

// Acquire blocks until a token is available or ctx is cancelled. Every
// call into the third-party API (and the pagination loop driving it) must
// call Acquire exactly once per HTTP request, including retries.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
