package classify

import (
	"context"
	"errors"
)

// Built-in classifier registry names.
const (
	ClassifierAlwaysRetryOnError = "always"
	ClassifierTransientStorage   = "transient_storage"
)

// RegisterBuiltins registers core classifiers into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	reg.Register(ClassifierAlwaysRetryOnError, AlwaysRetryOnError{})
	reg.Register(ClassifierTransientStorage, TransientStorage{})
}

// AlwaysRetryOnError classifies nil errors as success and all other errors as retryable,
// except for context cancellation which aborts immediately.
type AlwaysRetryOnError struct{}

func (AlwaysRetryOnError) Classify(_ any, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Reason: "success"}
	}
	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: OutcomeAbort, Reason: "context_canceled", ErrorKind: KindCanceled}
	}
	return Outcome{Kind: OutcomeRetryable, Reason: "retryable_error", ErrorKind: KindOf(err)}
}

// TransientStorage retries storage connectivity failures only.
type TransientStorage struct{}

func (TransientStorage) Classify(val any, err error) Outcome {
	return KindClassifier{RetryOn: []ErrorKind{KindTransientStorage}}.Classify(val, err)
}

// KindClassifier retries errors whose KindOf is listed in RetryOn.
// Everything else is terminal; cancellation aborts.
type KindClassifier struct {
	RetryOn []ErrorKind
}

func (c KindClassifier) Classify(_ any, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Reason: "success"}
	}
	kind := KindOf(err)
	if kind == KindCanceled {
		return Outcome{Kind: OutcomeAbort, Reason: "context_canceled", ErrorKind: kind}
	}
	for _, k := range c.RetryOn {
		if k == kind {
			return Outcome{Kind: OutcomeRetryable, Reason: string(kind), ErrorKind: kind}
		}
	}
	return Outcome{
		Kind:      OutcomeNonRetryable,
		Reason:    "non_retryable_error",
		ErrorKind: kind,
		Attributes: map[string]string{
			"error_kind": string(kind),
		},
	}
}
