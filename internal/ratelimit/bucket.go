package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Bucket is the global pacing gate against the downstream API: capacity
// `burst` tokens, refilled at `perSec` tokens per second. Acquire blocks the
// caller for the exact time a token needs to become available; the event
// loop is single-threaded, so the block is the backpressure.
type Bucket struct {
	limiter *rate.Limiter
}

func NewBucket(perSec float64, burst int) *Bucket {
	return &Bucket{
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

func (b *Bucket) Acquire(ctx context.Context) error {
	r := b.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	slog.Info("Global rate-limit wait", "wait", delay.Round(10*time.Millisecond))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
