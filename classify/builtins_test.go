package classify

import (
	"context"
	"errors"
	"testing"
)

func TestAlwaysRetryOnError(t *testing.T) {
	c := AlwaysRetryOnError{}

	if out := c.Classify(nil, nil); out.Kind != OutcomeSuccess {
		t.Fatalf("nil err: kind=%v want %v", out.Kind, OutcomeSuccess)
	}

	if out := c.Classify(nil, context.Canceled); out.Kind != OutcomeAbort {
		t.Fatalf("canceled: kind=%v want %v", out.Kind, OutcomeAbort)
	}

	if out := c.Classify(nil, context.DeadlineExceeded); out.Kind != OutcomeRetryable {
		t.Fatalf("deadline: kind=%v want %v", out.Kind, OutcomeRetryable)
	}

	if out := c.Classify(nil, errors.New("nope")); out.Kind != OutcomeRetryable {
		t.Fatalf("error: kind=%v want %v", out.Kind, OutcomeRetryable)
	}
}

func TestTransientStorage(t *testing.T) {
	c := TransientStorage{}

	if out := c.Classify(nil, nil); out.Kind != OutcomeSuccess {
		t.Fatalf("nil err: kind=%v want %v", out.Kind, OutcomeSuccess)
	}

	out := c.Classify(nil, MarkTransient(errors.New("dial tcp: connection refused")))
	if out.Kind != OutcomeRetryable || out.ErrorKind != KindTransientStorage {
		t.Fatalf("transient: out=%+v, want retryable transient_storage", out)
	}

	out = c.Classify(nil, errors.New("relation already exists"))
	if out.Kind != OutcomeNonRetryable {
		t.Fatalf("schema error: kind=%v want %v", out.Kind, OutcomeNonRetryable)
	}
	if out.Attributes["error_kind"] != string(KindUnknown) {
		t.Fatalf("error_kind=%q, want %q", out.Attributes["error_kind"], KindUnknown)
	}

	if out := c.Classify(nil, context.Canceled); out.Kind != OutcomeAbort {
		t.Fatalf("canceled: kind=%v want %v", out.Kind, OutcomeAbort)
	}

	if out := c.Classify(nil, context.DeadlineExceeded); out.Kind != OutcomeNonRetryable {
		t.Fatalf("deadline: kind=%v want %v", out.Kind, OutcomeNonRetryable)
	}
}

func TestKindClassifier_CustomKinds(t *testing.T) {
	c := KindClassifier{RetryOn: []ErrorKind{KindTimeout}}

	if out := c.Classify(nil, context.DeadlineExceeded); out.Kind != OutcomeRetryable {
		t.Fatalf("deadline: kind=%v want %v", out.Kind, OutcomeRetryable)
	}
	if out := c.Classify(nil, MarkTransient(errors.New("down"))); out.Kind != OutcomeNonRetryable {
		t.Fatalf("transient not opted in: kind=%v want %v", out.Kind, OutcomeNonRetryable)
	}
}

func TestClassifierFunc(t *testing.T) {
	var c Classifier = ClassifierFunc(func(any, error) Outcome {
		return Outcome{Kind: OutcomeAbort}
	})
	if out := c.Classify(nil, nil); out.Kind != OutcomeAbort {
		t.Fatalf("kind=%v want %v", out.Kind, OutcomeAbort)
	}
}

func TestOutcomeKind_String(t *testing.T) {
	cases := map[OutcomeKind]string{
		OutcomeUnknown:      "unknown",
		OutcomeSuccess:      "success",
		OutcomeRetryable:    "retryable",
		OutcomeNonRetryable: "non_retryable",
		OutcomeAbort:        "abort",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("String(%d)=%q, want %q", kind, got, want)
		}
	}
}
