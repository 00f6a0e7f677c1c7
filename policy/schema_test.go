package policy

import (
	"reflect"
	"testing"
	"time"

	"github.com/aponysus/hostkit/classify"
)

func TestDefaultRetryPolicy_Schedule(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 4 {
		t.Fatalf("maxAttempts=%d, want 4", p.MaxAttempts)
	}
	want := []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second}
	for i, d := range want {
		if got := p.Delay(i + 1); got != d {
			t.Fatalf("Delay(%d)=%v, want %v", i+1, got, d)
		}
	}
	if got := p.Delay(0); got != 0 {
		t.Fatalf("Delay(0)=%v, want 0", got)
	}
	if !reflect.DeepEqual(p.RetryOn, []classify.ErrorKind{classify.KindTransientStorage}) {
		t.Fatalf("retryOn=%v, want [transient_storage]", p.RetryOn)
	}
}

func TestDefaultRetryPolicy_ReturnsFreshSlices(t *testing.T) {
	a := DefaultRetryPolicy()
	a.Delays[0] = time.Hour
	if b := DefaultRetryPolicy(); b.Delays[0] != 3*time.Second {
		t.Fatalf("default schedule was mutated: %v", b.Delays)
	}
}

func TestEffectivePolicyNormalize_ExponentialDefaults(t *testing.T) {
	p := EffectivePolicy{
		Retry: RetryPolicy{
			MaxAttempts:       0,
			InitialBackoff:    -1,
			MaxBackoff:        0,
			BackoffMultiplier: 0,
			Jitter:            "",
			OverallTimeout:    -2,
		},
	}

	normalized, err := p.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if normalized.Retry.Backoff != BackoffExponential {
		t.Fatalf("backoff=%v, want %v", normalized.Retry.Backoff, BackoffExponential)
	}
	if normalized.Retry.MaxAttempts != 3 {
		t.Fatalf("maxAttempts=%d, want 3", normalized.Retry.MaxAttempts)
	}
	if normalized.Retry.InitialBackoff != 100*time.Millisecond {
		t.Fatalf("initialBackoff=%v, want 100ms", normalized.Retry.InitialBackoff)
	}
	if normalized.Retry.MaxBackoff != 10*time.Second {
		t.Fatalf("maxBackoff=%v, want 10s", normalized.Retry.MaxBackoff)
	}
	if normalized.Retry.BackoffMultiplier != 2 {
		t.Fatalf("backoffMultiplier=%v, want 2", normalized.Retry.BackoffMultiplier)
	}
	if normalized.Retry.Jitter != JitterNone {
		t.Fatalf("jitter=%v, want %v", normalized.Retry.Jitter, JitterNone)
	}
	if normalized.Retry.OverallTimeout != 0 {
		t.Fatalf("overallTimeout=%v, want 0", normalized.Retry.OverallTimeout)
	}
	if !normalized.Meta.Normalization.Changed {
		t.Fatalf("expected normalization to mark changes")
	}

	if got := normalized.Retry.Delay(1); got != 100*time.Millisecond {
		t.Fatalf("Delay(1)=%v, want 100ms", got)
	}
	if got := normalized.Retry.Delay(3); got != 400*time.Millisecond {
		t.Fatalf("Delay(3)=%v, want 400ms", got)
	}
}

func TestEffectivePolicyNormalize_FixedDelaysInferAttempts(t *testing.T) {
	p := EffectivePolicy{Retry: RetryPolicy{Delays: []time.Duration{time.Second, 2 * time.Second}}}

	normalized, err := p.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized.Retry.Backoff != BackoffFixed {
		t.Fatalf("backoff=%v, want fixed", normalized.Retry.Backoff)
	}
	if normalized.Retry.MaxAttempts != 3 {
		t.Fatalf("maxAttempts=%d, want 3", normalized.Retry.MaxAttempts)
	}
}

func TestEffectivePolicyNormalize_FixedDelaysMatchAttempts(t *testing.T) {
	padded, err := EffectivePolicy{Retry: RetryPolicy{
		MaxAttempts: 5,
		Backoff:     BackoffFixed,
		Delays:      []time.Duration{time.Second, -time.Second},
	}}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{time.Second, 0, 0, 0}
	if !reflect.DeepEqual(padded.Retry.Delays, want) {
		t.Fatalf("delays=%v, want %v", padded.Retry.Delays, want)
	}

	original := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	truncated, err := EffectivePolicy{Retry: RetryPolicy{
		MaxAttempts: 2,
		Backoff:     BackoffFixed,
		Delays:      original,
	}}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(truncated.Retry.Delays, []time.Duration{time.Second}) {
		t.Fatalf("delays=%v, want [1s]", truncated.Retry.Delays)
	}
	if len(original) != 3 {
		t.Fatalf("normalize mutated the caller's slice: %v", original)
	}
}

func TestEffectivePolicyNormalize_ClampsAttempts(t *testing.T) {
	high, _ := EffectivePolicy{Retry: RetryPolicy{MaxAttempts: 50}}.Normalize()
	if high.Retry.MaxAttempts != maxRetryAttempts {
		t.Fatalf("maxAttempts=%d, want %d", high.Retry.MaxAttempts, maxRetryAttempts)
	}
	low, _ := EffectivePolicy{Retry: RetryPolicy{MaxAttempts: -3}}.Normalize()
	if low.Retry.MaxAttempts != 1 {
		t.Fatalf("maxAttempts=%d, want 1", low.Retry.MaxAttempts)
	}
}

func TestEffectivePolicyNormalize_RetryOn(t *testing.T) {
	p := EffectivePolicy{Retry: RetryPolicy{
		RetryOn: []classify.ErrorKind{"transient_storage", "TIMEOUT", "transient_storage"},
	}}
	normalized, err := p.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []classify.ErrorKind{classify.KindTransientStorage, classify.KindTimeout}
	if !reflect.DeepEqual(normalized.Retry.RetryOn, want) {
		t.Fatalf("retryOn=%v, want %v", normalized.Retry.RetryOn, want)
	}

	_, err = EffectivePolicy{Retry: RetryPolicy{RetryOn: []classify.ErrorKind{"sometimes"}}}.Normalize()
	if _, ok := err.(*NormalizeError); !ok {
		t.Fatalf("expected NormalizeError, got %T", err)
	}
}

func TestEffectivePolicyNormalize_InvalidFields(t *testing.T) {
	cases := []struct {
		name  string
		retry RetryPolicy
		field string
	}{
		{name: "jitter", retry: RetryPolicy{MaxAttempts: 1, Jitter: JitterKind("bogus")}, field: "retry.jitter"},
		{name: "backoff", retry: RetryPolicy{MaxAttempts: 1, Backoff: BackoffKind("linear")}, field: "retry.backoff"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := EffectivePolicy{Retry: tc.retry}.Normalize()
			ne, ok := err.(*NormalizeError)
			if !ok {
				t.Fatalf("expected NormalizeError, got %T", err)
			}
			if ne.Field != tc.field {
				t.Fatalf("field=%q, want %q", ne.Field, tc.field)
			}
			if !normalized.IsZero() || normalized.Meta.Normalization.Changed {
				t.Fatalf("expected zero policy on error, got %+v", normalized)
			}
		})
	}
}

func TestEffectivePolicy_IsZero(t *testing.T) {
	if !(EffectivePolicy{}).IsZero() {
		t.Fatal("empty policy should be zero")
	}
	if (EffectivePolicy{Retry: RetryPolicy{Delays: []time.Duration{time.Second}}}).IsZero() {
		t.Fatal("policy with delays should not be zero")
	}
}
