package observe

import (
	"context"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/policy"
)

// AttemptRecord describes a single attempt.
type AttemptRecord struct {
	// Attempt is 1-based.
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	Outcome classify.Outcome
	Err     error

	Backoff time.Duration // wait before this attempt

	// Retrying reports whether the executor will run another attempt after
	// waiting NextBackoff.
	Retrying    bool
	NextBackoff time.Duration
}

// Duration is the wall time spent inside the operation.
func (r AttemptRecord) Duration() time.Duration {
	if r.EndTime.Before(r.StartTime) {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Timeline is the structured record of a single call and all of its attempts.
type Timeline struct {
	Key      policy.PolicyKey
	PolicyID string
	Start    time.Time
	End      time.Time

	// Attributes holds call-level metadata (policy source, classifier, normalization notes).
	Attributes map[string]string

	Attempts []AttemptRecord
	FinalErr error
}

// Last returns the final attempt, if any ran.
func (t Timeline) Last() (AttemptRecord, bool) {
	if len(t.Attempts) == 0 {
		return AttemptRecord{}, false
	}
	return t.Attempts[len(t.Attempts)-1], true
}

// Observer receives lifecycle callbacks for a single call.
type Observer interface {
	OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy)
	OnAttempt(ctx context.Context, key policy.PolicyKey, rec AttemptRecord)
	OnSuccess(ctx context.Context, key policy.PolicyKey, tl Timeline)
	OnFailure(ctx context.Context, key policy.PolicyKey, tl Timeline)
}
