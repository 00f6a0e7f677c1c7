package classify

import "time"

// OutcomeKind describes the executor's decision about an attempt result.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeRetryable
	OutcomeNonRetryable
	OutcomeAbort
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeNonRetryable:
		return "non_retryable"
	case OutcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Outcome describes the classification of an attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	// ErrorKind is the failure class the classifier recognised, if any.
	ErrorKind ErrorKind

	// BackoffOverride, when set, overrides the policy backoff before the next attempt.
	BackoffOverride time.Duration

	Attributes map[string]string
}

// Classifier decides whether an attempt result should be retried.
type Classifier interface {
	Classify(val any, err error) Outcome
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(val any, err error) Outcome

func (f ClassifierFunc) Classify(val any, err error) Outcome { return f(val, err) }
