package host

import (
	"context"
	"reflect"
	"sync"
)

// Scope is a Resolver whose scoped instances are released by Close.
type Scope interface {
	Resolver
	Close() error
}

type scope struct {
	root *Services

	mu       sync.Mutex
	cache    instances
	closed   bool
	closeErr error
}

// NewScope opens a scope over s.
func (s *Services) NewScope() Scope {
	return &scope{root: s}
}

func (sc *scope) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	reg, ok := sc.root.registration(t)
	if !ok {
		return nil, &ServiceNotFoundError{Type: t}
	}
	if reg.lifetime == Singleton {
		return sc.root.singleton(ctx, t, reg)
	}

	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil, ErrScopeClosed
	}
	if v, ok := sc.cache.get(t); ok {
		sc.mu.Unlock()
		return v, nil
	}
	sc.mu.Unlock()

	built, err := reg.build(ctx, sc)
	if err != nil {
		return nil, &FactoryError{Type: t, Err: err}
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		closeIfCloser(built)
		return nil, ErrScopeClosed
	}
	if existing, ok := sc.cache.get(t); ok {
		closeIfCloser(built)
		return existing, nil
	}
	sc.cache.put(t, built, true)
	return built, nil
}

// Close releases scoped instances in reverse creation order. Later calls
// return the first result.
func (sc *scope) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return sc.closeErr
	}
	sc.closed = true
	sc.closeErr = sc.cache.closeAll()
	return sc.closeErr
}
