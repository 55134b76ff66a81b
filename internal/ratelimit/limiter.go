// Package ratelimit enforces minimum wall-clock spacing between calls
// attributed to one logical resource (an RPC endpoint, the quote service).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces successive calls by at least a configured interval.
// One Limiter per rate-limited resource; never share a Limiter across
// resources with different limits. Safe for sequential use by the single
// logical client that owns it.
type Limiter struct {
	interval time.Duration
	inner    *rate.Limiter
}

// New creates a Limiter with the given minimum interval between calls.
// A non-positive interval disables waiting.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{interval: 0, inner: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{
		interval: interval,
		inner:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call through this Limiter returned, or until ctx is cancelled.
// The internal watermark advances on every call, including ones that did
// not need to wait.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
