// Package dbinit brings a database context up to date at startup.
//
// Initialize opens a service scope, resolves the context from it, runs the
// migration and an optional seeder under a retry policy, and releases the
// scope. Failures are logged and reported in the returned Outcome; they are
// never returned as errors, so a failed migration leaves the host running in
// a degraded state rather than stopping it.
//
// The default policy makes four attempts, waiting 3s, 5s and 8s between
// them, and retries only transient storage errors (see classify.KindOf).
package dbinit

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/logging"
	"github.com/aponysus/hostkit/observe"
	otelobserve "github.com/aponysus/hostkit/observe/otel"
	"github.com/aponysus/hostkit/policy"
	"github.com/aponysus/hostkit/retry"
)

const tracerName = "github.com/aponysus/hostkit/dbinit"

// Namespace is the policy key namespace; the key for a context is "dbinit.<name>".
const Namespace = "dbinit"

// Target describes one database context.
type Target[C any] struct {
	// Name identifies the context in logs and policy keys. Defaults to the
	// type name of C.
	Name string
	// Open obtains the context from the initialization scope.
	Open func(ctx context.Context, scope host.Scope) (C, error)
	// Migrate brings the schema to the latest version.
	Migrate func(ctx context.Context, c C) error
}

// Seeder populates a freshly migrated context. r resolves other services
// from the same scope.
type Seeder[C any] func(ctx context.Context, c C, r host.Resolver) error

// Outcome is the result of one Initialize call.
type Outcome struct {
	Context   string
	Succeeded bool
	// Attempts is the number of times the migrate+seed body ran.
	Attempts int
	Err      error
	RunID    string
	Duration time.Duration
}

// Initialize migrates and optionally seeds target. It always returns h.
func Initialize[C any](ctx context.Context, h host.Host, target Target[C], seeder Seeder[C], opts ...Option) (host.Host, Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := buildOptions(opts)
	name := ContextName(target)
	start := o.clock()

	o.logger = o.logger.With("context", name, "run_id", o.runID)

	ctx, span := o.tracer.Start(ctx, "dbinit.initialize", trace.WithAttributes(
		attribute.String("dbinit.context", name),
		attribute.String("dbinit.run_id", o.runID),
	))
	defer span.End()

	attempts, err := initialize(ctx, h, target, seeder, name, o)

	out := Outcome{
		Context:   name,
		Succeeded: err == nil,
		Attempts:  attempts,
		Err:       err,
		RunID:     o.runID,
		Duration:  o.clock().Sub(start),
	}

	span.SetAttributes(attribute.Int("dbinit.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "migration failed")
		o.logger.ErrorContext(ctx, "migration failed", "attempts", attempts, "err", err)
	} else {
		o.logger.InfoContext(ctx, "migration completed", "attempts", attempts, "elapsed", out.Duration)
	}

	if o.recorder != nil {
		o.recorder.Record(out)
	}
	return h, out
}

func initialize[C any](ctx context.Context, h host.Host, target Target[C], seeder Seeder[C], name string, o options) (attempts int, err error) {
	if h == nil {
		return 0, &StageError{Stage: StageScope, Context: name, Err: errors.New("host is nil")}
	}

	scope, err := h.CreateScope(ctx)
	if err != nil {
		return 0, &StageError{Stage: StageScope, Context: name, Err: err}
	}
	if scope == nil {
		return 0, &StageError{Stage: StageScope, Context: name, Err: errors.New("host returned a nil scope")}
	}
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			o.logger.WarnContext(ctx, "scope close failed", "err", cerr)
		}
	}()

	if target.Open == nil {
		return 0, &StageError{Stage: StageOpen, Context: name, Err: errors.New("target has no Open func")}
	}
	if target.Migrate == nil {
		return 0, &StageError{Stage: StageMigrate, Context: name, Err: errors.New("target has no Migrate func")}
	}

	var c C
	if err := guard(name, StageOpen, func() error {
		var oerr error
		c, oerr = target.Open(ctx, scope)
		return oerr
	}); err != nil {
		return 0, &StageError{Stage: StageOpen, Context: name, Err: err}
	}

	o.logger.InfoContext(ctx, "migration starting")

	key := policy.PolicyKey{Namespace: Namespace, Name: name}
	exec := o.executor(key)

	var tl observe.Timeline
	err = guard(name, StageMigrate, func() error {
		var rerr error
		tl, rerr = exec.DoWithTimeline(ctx, key, func(ctx context.Context) error {
			if err := target.Migrate(ctx, c); err != nil {
				return &StageError{Stage: StageMigrate, Context: name, Err: err}
			}
			if seeder == nil {
				return nil
			}
			if err := seeder(ctx, c, scope); err != nil {
				return &StageError{Stage: StageSeed, Context: name, Err: err}
			}
			return nil
		})
		return rerr
	})
	attempts = len(tl.Attempts)
	if err == nil {
		return attempts, nil
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return attempts, err
	}
	return attempts, &StageError{Stage: StageMigrate, Context: name, Err: err}
}

// guard converts a panic in fn into a *retry.PanicError.
func guard(name string, stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &retry.PanicError{
				Component: "dbinit." + string(stage),
				Key:       policy.PolicyKey{Namespace: Namespace, Name: name},
				Value:     r,
				Stack:     debug.Stack(),
			}
		}
	}()
	return fn()
}

// ContextName returns target.Name, or the type name of C without pointers.
func ContextName[C any](target Target[C]) string {
	if target.Name != "" {
		return target.Name
	}
	t := reflect.TypeFor[C]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

func (o options) executor(key policy.PolicyKey) *retry.Executor {
	if o.exec != nil {
		return o.exec
	}

	obs := observe.Combine(append([]observe.Observer{
		observe.NewLogObserver(o.logger),
		otelobserve.New(),
	}, o.observers...)...)

	execOpts := []retry.ExecutorOption{retry.WithObserver(obs)}
	switch {
	case o.provider != nil:
		execOpts = append(execOpts, retry.WithProvider(o.provider))
	case len(o.policyOpts) > 0:
		execOpts = append(execOpts, retry.WithPolicyKey(key, o.policyOpts...))
	}
	execOpts = append(execOpts, o.retryOpts...)
	return retry.NewDefaultExecutor(execOpts...)
}

// String renders the outcome for command output.
func (o Outcome) String() string {
	if o.Succeeded {
		return fmt.Sprintf("%s: ok (%d attempt(s), %s)", o.Context, o.Attempts, o.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: failed after %d attempt(s): %v", o.Context, o.Attempts, o.Err)
}
