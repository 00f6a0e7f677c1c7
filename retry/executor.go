package retry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/controlplane"
	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
)

// FailureMode controls behavior when a dependency is missing.
type FailureMode int

const (
	FailureModeUnknown FailureMode = iota
	FailureDeny
	FailureAllow
	FailureFallback
)

func (m FailureMode) String() string {
	switch m {
	case FailureDeny:
		return "deny"
	case FailureAllow:
		return "allow"
	case FailureFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// ParseFailureMode accepts the names returned by FailureMode.String.
func ParseFailureMode(s string) (FailureMode, bool) {
	switch s {
	case "deny":
		return FailureDeny, true
	case "allow":
		return FailureAllow, true
	case "fallback":
		return FailureFallback, true
	default:
		return FailureModeUnknown, false
	}
}

type Operation func(ctx context.Context) error
type OperationValue[T any] func(ctx context.Context) (T, error)

// Executor runs operations under the policy resolved for their key. Attempts
// run sequentially on the caller's goroutine.
type Executor struct {
	provider              controlplane.PolicyProvider
	observer              observe.Observer
	clock                 func() time.Time
	sleep                 func(context.Context, time.Duration) error
	classifiers           *classify.Registry
	defaultClassifier     classify.Classifier
	missingPolicyMode     FailureMode
	missingClassifierMode FailureMode
	recoverPanics         bool
}

// NewExecutor creates an Executor from functional options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := &executorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if cfg.opts.Provider == nil && len(cfg.staticPolicies) > 0 {
		cfg.opts.Provider = &controlplane.StaticProvider{
			Policies: cfg.staticPolicies,
		}
	}

	return NewExecutorFromOptions(cfg.opts)
}

// NewExecutorFromOptions creates an Executor from a config struct.
func NewExecutorFromOptions(opts ExecutorOptions) *Executor {
	e := &Executor{
		provider:              opts.Provider,
		observer:              opts.Observer,
		clock:                 opts.Clock,
		sleep:                 opts.Sleep,
		classifiers:           opts.Classifiers,
		defaultClassifier:     opts.DefaultClassifier,
		missingPolicyMode:     normalizeFailureMode(opts.MissingPolicyMode, FailureDeny),
		missingClassifierMode: normalizeFailureMode(opts.MissingClassifierMode, FailureFallback),
		recoverPanics:         opts.RecoverPanics,
	}

	if e.provider == nil {
		e.provider = &controlplane.StaticProvider{}
	}
	if e.observer == nil {
		e.observer = observe.NoopObserver{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.sleep == nil {
		e.sleep = sleepWithContext
	}
	if e.classifiers == nil {
		e.classifiers = classify.NewBuiltinRegistry()
	}
	if e.defaultClassifier == nil {
		e.defaultClassifier = classify.AlwaysRetryOnError{}
	}

	return e
}

func normalizeFailureMode(mode FailureMode, defaultMode FailureMode) FailureMode {
	switch mode {
	case FailureFallback, FailureAllow, FailureDeny:
		return mode
	default:
		return defaultMode
	}
}

func (e *Executor) Do(ctx context.Context, key policy.PolicyKey, op Operation) error {
	_, _, err := run(ctx, e, key, wrapOp(op))
	return err
}

// DoWithTimeline is Do that also returns the record of every attempt.
func (e *Executor) DoWithTimeline(ctx context.Context, key policy.PolicyKey, op Operation) (observe.Timeline, error) {
	_, tl, err := run(ctx, e, key, wrapOp(op))
	return tl, err
}

func DoValue[T any](ctx context.Context, exec *Executor, key policy.PolicyKey, op OperationValue[T]) (T, error) {
	val, _, err := run(ctx, exec, key, op)
	return val, err
}

func DoValueWithTimeline[T any](ctx context.Context, exec *Executor, key policy.PolicyKey, op OperationValue[T]) (T, observe.Timeline, error) {
	return run(ctx, exec, key, op)
}

func wrapOp(op Operation) OperationValue[struct{}] {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}
}

func run[T any](ctx context.Context, exec *Executor, key policy.PolicyKey, op OperationValue[T]) (T, observe.Timeline, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if exec == nil {
		exec = DefaultExecutor()
	}

	start := exec.clock()
	fail := func(pol policy.EffectivePolicy, attrs map[string]string, err error) (T, observe.Timeline, error) {
		tl := observe.Timeline{
			Key:        key,
			PolicyID:   pol.ID,
			Start:      start,
			End:        exec.clock(),
			Attributes: attrs,
			FinalErr:   err,
		}
		exec.observer.OnStart(ctx, key, pol)
		exec.observer.OnFailure(ctx, key, tl)
		return zero, tl, err
	}

	pol, attrs, err := exec.resolvePolicy(ctx, key)
	if err != nil {
		return fail(pol, attrs, err)
	}

	classifier, cname, err := exec.resolveClassifier(pol)
	attrs["classifier"] = cname
	if err != nil {
		attrs["classifier_error"] = "classifier_not_found"
		return fail(pol, attrs, err)
	}

	if pol.Retry.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pol.Retry.OverallTimeout)
		defer cancel()
	}

	maxAttempts := pol.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	tl := observe.Timeline{
		Key:        key,
		PolicyID:   pol.ID,
		Start:      start,
		Attributes: attrs,
		Attempts:   make([]observe.AttemptRecord, 0, maxAttempts),
	}
	finish := func(val T, err error) (T, observe.Timeline, error) {
		tl.End = exec.clock()
		tl.FinalErr = err
		if err == nil {
			exec.observer.OnSuccess(ctx, key, tl)
		} else {
			exec.observer.OnFailure(ctx, key, tl)
		}
		return val, tl, err
	}

	exec.observer.OnStart(ctx, key, pol)

	var (
		last    T
		backoff time.Duration
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return finish(last, err)
		}

		attemptCtx := observe.WithAttemptInfo(ctx, observe.AttemptInfo{
			Key:         key.String(),
			Attempt:     attempt,
			RetryIndex:  attempt - 1,
			MaxAttempts: maxAttempts,
			PolicyID:    pol.ID,
		})

		rec := observe.AttemptRecord{
			Attempt:   attempt,
			StartTime: exec.clock(),
			Backoff:   backoff,
		}
		val, panicked, opErr := callOp(attemptCtx, exec.recoverPanics, key, op)
		rec.EndTime = exec.clock()
		rec.Err = opErr
		last = val

		var out classify.Outcome
		if panicked {
			out = classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "panic"}
		} else {
			var cerr error
			out, cerr = classifyWithRecovery(exec.recoverPanics, classifier, val, opErr, key)
			if cerr != nil {
				rec.Outcome = out
				tl.Attempts = append(tl.Attempts, rec)
				exec.observer.OnAttempt(ctx, key, rec)
				return finish(last, cerr)
			}
		}
		rec.Outcome = out

		if out.Kind == classify.OutcomeSuccess {
			tl.Attempts = append(tl.Attempts, rec)
			exec.observer.OnAttempt(ctx, key, rec)
			return finish(val, nil)
		}

		if out.Kind == classify.OutcomeRetryable && attempt < maxAttempts {
			rec.Retrying = true
			rec.NextBackoff = computeSleep(pol.Retry.Delay(attempt), pol.Retry, out)
		}
		tl.Attempts = append(tl.Attempts, rec)
		exec.observer.OnAttempt(ctx, key, rec)

		if !rec.Retrying {
			return finish(last, terminalError(ctx, opErr, out))
		}

		backoff = rec.NextBackoff
		if backoff > 0 {
			if err := exec.sleep(ctx, backoff); err != nil {
				return finish(last, err)
			}
		}
	}

	// Unreachable: the final attempt is never marked Retrying.
	return finish(last, tl.Attempts[len(tl.Attempts)-1].Err)
}

// callOp runs op, converting a panic into *PanicError when recovery is enabled.
func callOp[T any](ctx context.Context, recoverPanics bool, key policy.PolicyKey, op OperationValue[T]) (val T, panicked bool, err error) {
	if recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = &PanicError{
					Component: "operation",
					Key:       key,
					Value:     r,
					Stack:     debug.Stack(),
				}
			}
		}()
	}
	val, err = op(ctx)
	return val, false, err
}

func (e *Executor) resolvePolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, map[string]string, error) {
	attrs := make(map[string]string)

	var pol policy.EffectivePolicy
	var err error

	func() {
		if e.recoverPanics {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{
						Component: "policy_provider",
						Key:       key,
						Value:     r,
						Stack:     debug.Stack(),
					}
				}
			}()
		}
		pol, err = e.provider.GetEffectivePolicy(ctx, key)
	}()

	if err != nil {
		attrs["policy_error"] = policyErrorKind(err)
		switch e.missingPolicyMode {
		case FailureDeny:
			return policy.EffectivePolicy{}, attrs, &NoPolicyError{Key: key, Err: err}
		case FailureAllow:
			pol = policy.EffectivePolicy{Key: key, Retry: policy.RetryPolicy{MaxAttempts: 1}}
		case FailureFallback:
			pol = policy.DefaultPolicyFor(key)
		}
	}
	if pol.IsZero() {
		pol = policy.DefaultPolicyFor(key)
	}
	pol.Key = key

	normalized, normErr := pol.Normalize()
	if normErr != nil {
		attrs["policy_error"] = fmt.Sprintf("normalization_failed: %v", normErr)
		switch e.missingPolicyMode {
		case FailureDeny:
			return policy.EffectivePolicy{}, attrs, &NoPolicyError{Key: key, Err: normErr}
		case FailureAllow:
			normalized, _ = policy.EffectivePolicy{Key: key, Retry: policy.RetryPolicy{MaxAttempts: 1}}.Normalize()
		default:
			normalized, _ = policy.DefaultPolicyFor(key).Normalize()
		}
	}
	attrs["policy_source"] = string(normalized.Meta.Source)

	return normalized, attrs, nil
}

func policyErrorKind(err error) string {
	switch {
	case errors.Is(err, controlplane.ErrPolicyNotFound):
		return "policy_not_found"
	case errors.Is(err, controlplane.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrPanic):
		return "provider_panic"
	default:
		return "unknown_error"
	}
}

// resolveClassifier picks, in order: the classifier named by the policy, a
// KindClassifier over RetryOn, then the executor default.
func (e *Executor) resolveClassifier(pol policy.EffectivePolicy) (classify.Classifier, string, error) {
	name := pol.Retry.ClassifierName
	if name == "" {
		if len(pol.Retry.RetryOn) > 0 {
			return classify.KindClassifier{RetryOn: pol.Retry.RetryOn}, "retry_on", nil
		}
		return e.defaultClassifier, "default", nil
	}

	if c, ok := e.classifiers.Get(name); ok {
		return c, name, nil
	}
	if e.missingClassifierMode == FailureDeny {
		return nil, name, &NoClassifierError{Name: name}
	}
	return e.defaultClassifier, "default", nil
}

func classifyWithRecovery(recoverPanics bool, classifier classify.Classifier, value any, err error, key policy.PolicyKey) (out classify.Outcome, panicErr error) {
	if recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				out = classify.Outcome{Kind: classify.OutcomeAbort, Reason: "panic_in_classifier"}
				panicErr = &PanicError{
					Component: "classifier",
					Key:       key,
					Value:     r,
					Stack:     debug.Stack(),
				}
			}
		}()
	}
	out = classifier.Classify(value, err)
	if out.Kind == classify.OutcomeUnknown {
		if out.Reason == "" {
			out.Reason = "unknown_outcome"
		}
		out.Kind = classify.OutcomeAbort
	}
	if out.Reason == "" {
		switch out.Kind {
		case classify.OutcomeSuccess:
			out.Reason = "success"
		case classify.OutcomeRetryable:
			out.Reason = "retryable_error"
		case classify.OutcomeNonRetryable:
			out.Reason = "non_retryable_error"
		default:
			out.Reason = "abort"
		}
	}
	return out, nil
}

// terminalError returns the error a failed call reports. The operation's own
// error is returned unwrapped so callers can match it with errors.Is/As.
func terminalError(ctx context.Context, opErr error, out classify.Outcome) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(opErr, context.Canceled) || errors.Is(opErr, context.DeadlineExceeded)) {
		return ctxErr
	}
	if opErr != nil {
		return opErr
	}
	if out.Reason != "" {
		return errors.New("hostkit: " + out.Reason)
	}
	return errors.New("hostkit: operation failed")
}
