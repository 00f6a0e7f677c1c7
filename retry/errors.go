package retry

import (
	"errors"
	"fmt"

	"github.com/aponysus/hostkit/policy"
)

var (
	// ErrNoPolicy is returned when no usable policy is found and the missing
	// policy mode is FailureDeny.
	ErrNoPolicy = errors.New("hostkit: no policy found")
	// ErrPanic matches any *PanicError.
	ErrPanic = errors.New("hostkit: panic recovered")
)

// PanicError reports a panic recovered from user code or a pluggable component.
type PanicError struct {
	Component string
	Key       policy.PolicyKey
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hostkit: panic in %s for %s: %v", e.Component, e.Key, e.Value)
}

func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type NoPolicyError struct {
	Key policy.PolicyKey
	Err error
}

func (e *NoPolicyError) Error() string {
	return fmt.Sprintf("hostkit: policy not found for %s: %v", e.Key, e.Err)
}

func (e *NoPolicyError) Unwrap() error {
	return e.Err
}

func (e *NoPolicyError) Is(target error) bool {
	return target == ErrNoPolicy
}

type NoClassifierError struct {
	Name string
}

func (e *NoClassifierError) Error() string {
	return fmt.Sprintf("hostkit: classifier not found: %s", e.Name)
}
