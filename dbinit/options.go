package dbinit

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/hostkit/controlplane"
	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
	"github.com/aponysus/hostkit/retry"
)

type options struct {
	logger     *slog.Logger
	exec       *retry.Executor
	policyOpts []policy.Option
	provider   controlplane.PolicyProvider
	observers  []observe.Observer
	retryOpts  []retry.ExecutorOption
	tracer     trace.Tracer
	runID      string
	recorder   Recorder
	clock      func() time.Time
}

// Option configures a single initialization.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExecutor runs the guarded body on exec. WithPolicy, WithProvider,
// WithObserver and WithRetryOptions are ignored when an executor is supplied.
func WithExecutor(exec *retry.Executor) Option {
	return func(o *options) { o.exec = exec }
}

// WithPolicy overrides the retry policy for this context.
func WithPolicy(opts ...policy.Option) Option {
	return func(o *options) { o.policyOpts = append(o.policyOpts, opts...) }
}

// WithProvider resolves the policy for key "dbinit.<context>" from p.
func WithProvider(p controlplane.PolicyProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithObserver adds a retry observer alongside the built-in log and trace observers.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithRetryOptions passes extra options to the default executor, e.g.
// retry.WithSleep in tests.
func WithRetryOptions(opts ...retry.ExecutorOption) Option {
	return func(o *options) { o.retryOpts = append(o.retryOpts, opts...) }
}

// WithTracer sets the tracer for the "dbinit.initialize" span. The global
// otel tracer is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRunID sets the correlation id logged with every entry. A UUID is
// generated otherwise.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithRecorder reports the outcome to r, e.g. a *Tracker backing a health check.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

func withClock(f func() time.Time) Option {
	return func(o *options) { o.clock = f }
}
