package retry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aponysus/hostkit/classify"
	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
)

func TestExecutor_Do_Trivial(t *testing.T) {
	exec := NewExecutor()
	called := false
	err := exec.Do(context.Background(), policy.PolicyKey{}, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("unexpected result: err=%v called=%v", err, called)
	}
}

func TestExecutor_Do_MaxAttempts_One(t *testing.T) {
	key := policy.PolicyKey{Name: "x"}
	exec, sleeps := newTestExecutor(t, key, policy.EffectivePolicy{
		Retry: policy.RetryPolicy{MaxAttempts: 1},
	})

	calls := 0
	err := exec.Do(context.Background(), key, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(sleeps.recorded()) != 0 {
		t.Fatalf("unexpected sleeps: %v", sleeps.recorded())
	}
}

func TestExecutor_Do_StopsOnSuccess(t *testing.T) {
	key := policy.PolicyKey{Name: "x"}
	exec, _ := newTestExecutor(t, key, policy.EffectivePolicy{
		Retry: policy.RetryPolicy{MaxAttempts: 5},
	})

	calls := 0
	err := exec.Do(context.Background(), key, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestExecutor_DefaultScheduleWaits3s5s8s(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep))
	key := policy.ParseKey("dbinit.catalog")

	calls := 0
	transient := classify.MarkTransient(errors.New("dial tcp: connection refused"))
	err := exec.Do(context.Background(), key, func(context.Context) error {
		calls++
		return transient
	})

	if calls != 4 {
		t.Fatalf("calls=%d, want 4", calls)
	}
	want := []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second}
	if got := sleeps.recorded(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps=%v, want %v", got, want)
	}
	if !errors.Is(err, transient) {
		t.Fatalf("err=%v, want the last attempt's error", err)
	}
}

func TestExecutor_DefaultScheduleStopsOnNonTransient(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep))

	calls := 0
	schemaErr := errors.New("relation \"items\" already exists")
	err := exec.Do(context.Background(), policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		calls++
		return schemaErr
	})
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	if err != schemaErr {
		t.Fatalf("err=%v, want %v", err, schemaErr)
	}
	if len(sleeps.recorded()) != 0 {
		t.Fatalf("unexpected sleeps: %v", sleeps.recorded())
	}
}

func TestExecutor_DefaultScheduleRecoversOnSecondAttempt(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep))

	calls := 0
	tl, err := exec.DoWithTimeline(context.Background(), policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		calls++
		if calls == 1 {
			return classify.MarkTransient(errors.New("connection reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tl.Attempts) != 2 {
		t.Fatalf("attempts=%d, want 2", len(tl.Attempts))
	}
	if !reflect.DeepEqual(sleeps.recorded(), []time.Duration{3 * time.Second}) {
		t.Fatalf("sleeps=%v, want [3s]", sleeps.recorded())
	}
	if tl.Attempts[1].Backoff != 3*time.Second {
		t.Fatalf("second attempt backoff=%v, want 3s", tl.Attempts[1].Backoff)
	}
}

func TestExecutor_StaticPolicyDelays(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewExecutor(
		WithSleep(sleeps.sleep),
		WithPolicy("dbinit.orders", policy.Delays(time.Second, 2*time.Second), policy.RetryOn(classify.KindTimeout)),
	)

	calls := 0
	_ = exec.Do(context.Background(), policy.ParseKey("dbinit.orders"), func(context.Context) error {
		calls++
		return fmt.Errorf("query: %w", context.DeadlineExceeded)
	})
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
	if !reflect.DeepEqual(sleeps.recorded(), []time.Duration{time.Second, 2 * time.Second}) {
		t.Fatalf("sleeps=%v", sleeps.recorded())
	}
}

func TestExecutor_ContextCanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := NewDefaultExecutor(WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	calls := 0
	err := exec.Do(ctx, policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		calls++
		return classify.MarkTransient(errors.New("down"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestExecutor_ContextAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewDefaultExecutor().Do(ctx, policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("err=%v calls=%d, want canceled and 0 calls", err, calls)
	}
}

func TestExecutor_OverallTimeout(t *testing.T) {
	exec := NewExecutor(WithPolicy("dbinit.slow", policy.OverallTimeout(time.Millisecond), policy.NoRetry()))

	err := exec.Do(context.Background(), policy.ParseKey("dbinit.slow"), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}

func TestExecutor_RecoversOperationPanic(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep))

	calls := 0
	err := exec.Do(context.Background(), policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		calls++
		panic("seed exploded")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err=%v, want *PanicError", err)
	}
	if pe.Component != "operation" || pe.Value != "seed exploded" {
		t.Fatalf("unexpected panic error: %+v", pe)
	}
	if calls != 1 || len(sleeps.recorded()) != 0 {
		t.Fatalf("calls=%d sleeps=%v, want a single attempt", calls, sleeps.recorded())
	}
}

func TestExecutor_ClassifierPanicIsRecovered(t *testing.T) {
	reg := classify.NewRegistry()
	reg.Register("boom", classify.ClassifierFunc(func(any, error) classify.Outcome { panic("classifier") }))
	exec := NewExecutor(
		WithClassifiers(reg),
		WithRecoverPanics(true),
		WithPolicy("svc.op", policy.Classifier("boom")),
	)

	err := exec.Do(context.Background(), policy.ParseKey("svc.op"), func(context.Context) error { return nil })
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Component != "classifier" {
		t.Fatalf("err=%v, want classifier PanicError", err)
	}
}

func TestExecutor_UnknownOutcomeAborts(t *testing.T) {
	reg := classify.NewRegistry()
	reg.Register("unknown", classify.ClassifierFunc(func(any, error) classify.Outcome {
		return classify.Outcome{Kind: classify.OutcomeUnknown}
	}))
	exec := NewExecutor(WithClassifiers(reg), WithPolicy("svc.op", policy.Classifier("unknown")))

	calls := 0
	err := exec.Do(context.Background(), policy.ParseKey("svc.op"), func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want error after 1 call", err, calls)
	}
}

func TestExecutor_MissingClassifier(t *testing.T) {
	key := policy.ParseKey("svc.op")

	fallback := NewExecutor(WithPolicy("svc.op", policy.Classifier("nope"), policy.NoRetry()))
	tl, err := fallback.DoWithTimeline(context.Background(), key, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("fallback: unexpected error %v", err)
	}
	if tl.Attributes["classifier"] != "default" {
		t.Fatalf("classifier attr=%q, want default", tl.Attributes["classifier"])
	}

	deny := NewExecutor(
		WithPolicy("svc.op", policy.Classifier("nope")),
		WithMissingClassifierMode(FailureDeny),
	)
	_, err = deny.DoWithTimeline(context.Background(), key, func(context.Context) error { return nil })
	var nce *NoClassifierError
	if !errors.As(err, &nce) || nce.Name != "nope" {
		t.Fatalf("err=%v, want NoClassifierError", err)
	}
}

func TestExecutor_ProviderErrorModes(t *testing.T) {
	key := policy.ParseKey("svc.op")
	failing := providerFunc(func(context.Context, policy.PolicyKey) (policy.EffectivePolicy, error) {
		return policy.EffectivePolicy{}, errors.New("unreachable")
	})

	deny := NewExecutor(WithProvider(failing), WithMissingPolicyMode(FailureDeny))
	called := false
	err := deny.Do(context.Background(), key, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoPolicy) || called {
		t.Fatalf("deny: err=%v called=%v", err, called)
	}

	calls := 0
	allow := NewExecutor(WithProvider(failing), WithMissingPolicyMode(FailureAllow))
	_ = allow.Do(context.Background(), key, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("allow: calls=%d, want 1", calls)
	}

	sleeps := &sleepRecorder{}
	fallback := NewExecutor(WithProvider(failing), WithMissingPolicyMode(FailureFallback), WithSleep(sleeps.sleep))
	calls = 0
	tl, _ := fallback.DoWithTimeline(context.Background(), key, func(context.Context) error {
		calls++
		return classify.MarkTransient(errors.New("x"))
	})
	if calls != 4 {
		t.Fatalf("fallback: calls=%d, want 4", calls)
	}
	if tl.Attributes["policy_error"] != "unknown_error" || tl.Attributes["policy_source"] != string(policy.PolicySourceDefault) {
		t.Fatalf("fallback attrs=%v", tl.Attributes)
	}
}

func TestExecutor_ObserverSeesEveryAttempt(t *testing.T) {
	obs := &recordingObserver{}
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep), WithObserver(obs))

	_ = exec.Do(context.Background(), policy.ParseKey("dbinit.catalog"), func(context.Context) error {
		return classify.MarkTransient(errors.New("down"))
	})

	if obs.started != 1 || len(obs.failure) != 1 || len(obs.success) != 0 {
		t.Fatalf("started=%d failure=%d success=%d", obs.started, len(obs.failure), len(obs.success))
	}
	if len(obs.attempts) != 4 {
		t.Fatalf("attempts=%d, want 4", len(obs.attempts))
	}
	for i, rec := range obs.attempts {
		if rec.Attempt != i+1 {
			t.Fatalf("attempt[%d].Attempt=%d", i, rec.Attempt)
		}
		wantRetry := i < 3
		if rec.Retrying != wantRetry {
			t.Fatalf("attempt %d retrying=%v, want %v", rec.Attempt, rec.Retrying, wantRetry)
		}
		if rec.Outcome.ErrorKind != classify.KindTransientStorage {
			t.Fatalf("attempt %d error kind=%q", rec.Attempt, rec.Outcome.ErrorKind)
		}
	}
	if obs.attempts[2].NextBackoff != 8*time.Second {
		t.Fatalf("third attempt next backoff=%v, want 8s", obs.attempts[2].NextBackoff)
	}
}

func TestExecutor_AttemptInfoInContext(t *testing.T) {
	sleeps := &sleepRecorder{}
	exec := NewDefaultExecutor(WithSleep(sleeps.sleep))

	var seen []observe.AttemptInfo
	_ = exec.Do(context.Background(), policy.ParseKey("dbinit.catalog"), func(ctx context.Context) error {
		info, ok := observe.AttemptFromContext(ctx)
		if !ok {
			t.Fatal("missing attempt info")
		}
		seen = append(seen, info)
		if len(seen) < 2 {
			return classify.MarkTransient(errors.New("down"))
		}
		return nil
	})

	if len(seen) != 2 || seen[0].Attempt != 1 || seen[1].RetryIndex != 1 || seen[1].MaxAttempts != 4 {
		t.Fatalf("unexpected attempt info: %+v", seen)
	}
	if seen[0].Key != "dbinit.catalog" {
		t.Fatalf("key=%q", seen[0].Key)
	}
}

func TestDoValue_ReturnsValue(t *testing.T) {
	exec := NewDefaultExecutor()
	v, err := DoValue(context.Background(), exec, policy.ParseKey("svc.value"), func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("v=%d err=%v", v, err)
	}

	v, tl, err := DoValueWithTimeline(context.Background(), exec, policy.ParseKey("svc.value"), func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 || len(tl.Attempts) != 1 {
		t.Fatalf("v=%d err=%v attempts=%d", v, err, len(tl.Attempts))
	}
}

func TestDoValue_NilExecutorUsesDefault(t *testing.T) {
	v, err := DoValue(context.Background(), nil, policy.ParseKey("svc.nil"), func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}
