package retry

import (
	"context"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/controlplane"
	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Provider              controlplane.PolicyProvider
	Observer              observe.Observer
	Clock                 func() time.Time
	Sleep                 func(context.Context, time.Duration) error
	Classifiers           *classify.Registry
	DefaultClassifier     classify.Classifier
	MissingPolicyMode     FailureMode
	MissingClassifierMode FailureMode
	RecoverPanics         bool
}

type executorConfig struct {
	opts           ExecutorOptions
	staticPolicies map[policy.PolicyKey]policy.EffectivePolicy
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

// WithProvider sets the policy provider.
func WithProvider(p controlplane.PolicyProvider) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.Provider = p
	}
}

// WithObserver sets the observer. Use observe.Combine for several.
func WithObserver(o observe.Observer) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.Observer = o
	}
}

// WithClock sets the clock function.
func WithClock(f func() time.Time) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.Clock = f
	}
}

// WithSleep replaces the wait between attempts. The function must return
// ctx.Err() when ctx ends first.
func WithSleep(f func(context.Context, time.Duration) error) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.Sleep = f
	}
}

// WithClassifiers sets the classifier registry.
func WithClassifiers(r *classify.Registry) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.Classifiers = r
	}
}

// WithDefaultClassifier sets the classifier used when a policy names neither
// a classifier nor RetryOn kinds.
func WithDefaultClassifier(cls classify.Classifier) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.DefaultClassifier = cls
	}
}

func WithMissingPolicyMode(mode FailureMode) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.MissingPolicyMode = mode
	}
}

func WithMissingClassifierMode(mode FailureMode) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.MissingClassifierMode = mode
	}
}

// WithRecoverPanics converts panics in the operation, classifier and
// provider into *PanicError results.
func WithRecoverPanics(recover bool) ExecutorOption {
	return func(c *executorConfig) {
		c.opts.RecoverPanics = recover
	}
}

// WithPolicy adds a static policy for a string key (e.g. "dbinit.catalog").
func WithPolicy(key string, opts ...policy.Option) ExecutorOption {
	return func(c *executorConfig) {
		if c.staticPolicies == nil {
			c.staticPolicies = make(map[policy.PolicyKey]policy.EffectivePolicy)
		}
		p := policy.New(key, opts...)
		c.staticPolicies[p.Key] = p
	}
}

// WithPolicyKey adds a static policy for a structured key.
func WithPolicyKey(key policy.PolicyKey, opts ...policy.Option) ExecutorOption {
	return func(c *executorConfig) {
		if c.staticPolicies == nil {
			c.staticPolicies = make(map[policy.PolicyKey]policy.EffectivePolicy)
		}
		p := policy.NewFromKey(key, opts...)
		c.staticPolicies[p.Key] = p
	}
}
