package worker

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// sleepFunc is swapped in tests
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer spaces remote calls. Between sleeps a fixed interval between
// documents; Wait enforces an optional requests-per-second ceiling.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer creates a pacer. requestsPerSecond <= 0 disables the ceiling.
func NewPacer(interval time.Duration, requestsPerSecond float64) *Pacer {
	limit := rate.Inf
	if requestsPerSecond > 0 && !math.IsInf(requestsPerSecond, 1) {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Pacer{
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the request ceiling allows another call
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Between sleeps the fixed inter-document interval
func (p *Pacer) Between(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	return sleepFunc(ctx, p.interval)
}
