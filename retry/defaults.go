package retry

import (
	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/observe"
)

// DefaultOption allows customizing the default executor.
type DefaultOption = ExecutorOption

// NewDefaultExecutor creates an Executor tuned for startup work against
// storage.
//
// Defaults:
//   - Provider: empty StaticProvider, so every key gets the migration schedule
//     (4 attempts, waits of 3s, 5s and 8s).
//   - Classifiers: builtins registered; TransientStorage as the default.
//   - Missing or invalid policies fall back to the default schedule.
//   - Panics in user code are recovered.
func NewDefaultExecutor(opts ...DefaultOption) *Executor {
	defaultOpts := []ExecutorOption{
		WithObserver(observe.NoopObserver{}),
		WithClassifiers(classify.NewBuiltinRegistry()),
		WithDefaultClassifier(classify.TransientStorage{}),
		WithMissingPolicyMode(FailureFallback),
		WithRecoverPanics(true),
	}
	defaultOpts = append(defaultOpts, opts...)

	return NewExecutor(defaultOpts...)
}
