package host

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrServiceNotFound matches any *ServiceNotFoundError.
	ErrServiceNotFound = errors.New("hostkit: service not registered")
	// ErrScopeClosed is returned when resolving from a closed scope.
	ErrScopeClosed = errors.New("hostkit: scope closed")
	// ErrScopedFromRoot is returned when a scoped service is resolved outside a scope.
	ErrScopedFromRoot = errors.New("hostkit: scoped service resolved from root")
)

type ServiceNotFoundError struct {
	Type reflect.Type
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("hostkit: service not registered: %v", e.Type)
}

func (e *ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// FactoryError wraps a failure raised while constructing a service.
type FactoryError struct {
	Type reflect.Type
	Err  error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("hostkit: construct %v: %v", e.Type, e.Err)
}

func (e *FactoryError) Unwrap() error { return e.Err }
