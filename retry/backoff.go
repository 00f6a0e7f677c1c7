package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/policy"
)

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func applyJitter(backoff time.Duration, kind policy.JitterKind) time.Duration {
	switch kind {
	case policy.JitterFull:
		return time.Duration(rand.Float64() * float64(backoff))
	case policy.JitterEqual:
		half := float64(backoff) / 2
		return time.Duration(half + rand.Float64()*half)
	default:
		return backoff
	}
}

// computeSleep returns the wait before the next attempt. A classifier
// override wins over the policy schedule.
func computeSleep(delay time.Duration, pol policy.RetryPolicy, out classify.Outcome) time.Duration {
	if out.BackoffOverride > 0 {
		return capBackoff(out.BackoffOverride, pol.MaxBackoff)
	}
	return capBackoff(applyJitter(delay, pol.Jitter), pol.MaxBackoff)
}

func capBackoff(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
