package nominatim

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum spacing between successive call starts on
// one client instance, plus a small random jitter so that parallel
// workers do not fall into lockstep against the remote service. The
// guarantee is per client, not global: each worker owns its own client
// and therefore its own limiter.
type Limiter struct {
	limiter   *rate.Limiter
	maxJitter time.Duration
}

// NewLimiter creates a limiter with at least minDelay between calls and
// up to maxJitter of extra random delay per call.
func NewLimiter(minDelay, maxJitter time.Duration) *Limiter {
	return &Limiter{
		limiter:   rate.NewLimiter(rate.Every(minDelay), 1),
		maxJitter: maxJitter,
	}
}

// Wait blocks until the next call is allowed to start. Returns early
// with the context error on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	if l.maxJitter <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int64N(int64(l.maxJitter) + 1))
	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
