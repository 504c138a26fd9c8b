// Package ratelimit paces outbound provider requests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/scorpius/internal/clock"
)

// Gate spaces request starts at least Interval apart across all callers.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
	clock    clock.Clock
}

// NewGate allows requestsPerMinute starts per minute. Non-positive means unlimited.
func NewGate(requestsPerMinute int, c clock.Clock) *Gate {
	if c == nil {
		c = clock.Real()
	}
	if requestsPerMinute <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1), clock: c}
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &Gate{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		clock:    c,
	}
}

// Interval is the minimum spacing between two request starts.
func (g *Gate) Interval() time.Duration { return g.interval }

// Wait blocks until the caller may start a request or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	now := g.clock.Now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate gate: reservation refused")
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	select {
	case <-g.clock.After(delay):
		return nil
	case <-ctx.Done():
		r.CancelAt(g.clock.Now())
		return ctx.Err()
	}
}
