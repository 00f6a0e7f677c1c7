package policy

import (
	"time"

	"github.com/aponysus/hostkit/classify"
)

// Option mutates a policy under construction.
type Option func(*EffectivePolicy)

// New builds a normalized policy for a "namespace.name" key. Invalid
// combinations fall back to DefaultPolicyFor(key).
func New(key string, opts ...Option) EffectivePolicy {
	return NewFromKey(ParseKey(key), opts...)
}

// NewFromKey is New for an already structured key.
func NewFromKey(key PolicyKey, opts ...Option) EffectivePolicy {
	p := EffectivePolicy{Key: key, Retry: DefaultRetryPolicy(), Meta: Metadata{Source: PolicySourceStatic}}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	normalized, err := p.Normalize()
	if err != nil {
		fallback, _ := DefaultPolicyFor(key).Normalize()
		return fallback
	}
	return normalized
}

// MaxAttempts sets the total number of attempts, including the first.
func MaxAttempts(n int) Option {
	return func(p *EffectivePolicy) {
		p.Retry.MaxAttempts = n
	}
}

// Delays switches to a fixed schedule. MaxAttempts becomes len(delays)+1.
func Delays(delays ...time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.Backoff = BackoffFixed
		p.Retry.Delays = append([]time.Duration(nil), delays...)
		p.Retry.MaxAttempts = len(delays) + 1
	}
}

// ExponentialBackoff switches to exponential backoff with equal jitter.
func ExponentialBackoff(initial, max time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.Backoff = BackoffExponential
		p.Retry.Delays = nil
		p.Retry.InitialBackoff = initial
		p.Retry.MaxBackoff = max
		p.Retry.BackoffMultiplier = 2
		p.Retry.Jitter = JitterEqual
	}
}

func Jitter(kind JitterKind) Option {
	return func(p *EffectivePolicy) {
		p.Retry.Jitter = kind
	}
}

func OverallTimeout(d time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.OverallTimeout = d
	}
}

// RetryOn replaces the set of retried error kinds.
func RetryOn(kinds ...classify.ErrorKind) Option {
	return func(p *EffectivePolicy) {
		p.Retry.RetryOn = append([]classify.ErrorKind(nil), kinds...)
	}
}

// Classifier selects a registered classifier by name; it takes precedence over RetryOn.
func Classifier(name string) Option {
	return func(p *EffectivePolicy) {
		p.Retry.ClassifierName = name
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Option {
	return func(p *EffectivePolicy) {
		p.Retry.MaxAttempts = 1
		p.Retry.Delays = nil
	}
}
