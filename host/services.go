package host

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
)

// Lifetime controls how long a resolved instance is reused.
type Lifetime int

const (
	// Singleton instances live as long as the Services container.
	Singleton Lifetime = iota + 1
	// Scoped instances live as long as the Scope that created them.
	Scoped
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// Resolver looks up services by type. Use Get and Lookup rather than calling
// Resolve directly.
type Resolver interface {
	Resolve(ctx context.Context, t reflect.Type) (any, error)
}

type factory func(ctx context.Context, r Resolver) (any, error)

type registration struct {
	lifetime Lifetime
	build    factory
}

// Services is a type-keyed service registry. Registration is expected at
// startup; resolution is safe for concurrent use. Instances implementing
// io.Closer are closed in reverse creation order by Close (singletons) or
// Scope.Close (scoped).
type Services struct {
	mu       sync.RWMutex
	regs     map[reflect.Type]registration
	cache    instances
	closed   bool
	closeErr error
}

func NewServices() *Services {
	return &Services{regs: make(map[reflect.Type]registration)}
}

func register[T any](s *Services, lifetime Lifetime, build func(context.Context, Resolver) (T, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regs == nil {
		s.regs = make(map[reflect.Type]registration)
	}
	s.regs[reflect.TypeFor[T]()] = registration{
		lifetime: lifetime,
		build: func(ctx context.Context, r Resolver) (any, error) {
			return build(ctx, r)
		},
	}
}

// AddSingleton registers a lazily built, shared instance of T.
func AddSingleton[T any](s *Services, build func(ctx context.Context, r Resolver) (T, error)) {
	register(s, Singleton, build)
}

// AddScoped registers T to be built once per Scope.
func AddScoped[T any](s *Services, build func(ctx context.Context, r Resolver) (T, error)) {
	register(s, Scoped, build)
}

// AddInstance registers an already built singleton. Services does not close it.
func AddInstance[T any](s *Services, v T) {
	register(s, Singleton, func(context.Context, Resolver) (T, error) { return v, nil })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.put(reflect.TypeFor[T](), v, false)
}

func (s *Services) registration(t reflect.Type) (registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[t]
	return reg, ok
}

// Has reports whether T has been registered.
func Has[T any](s *Services) bool {
	_, ok := s.registration(reflect.TypeFor[T]())
	return ok
}

// Resolve implements Resolver for singletons. Scoped services need a Scope.
func (s *Services) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	reg, ok := s.registration(t)
	if !ok {
		return nil, &ServiceNotFoundError{Type: t}
	}
	if reg.lifetime == Scoped {
		return nil, ErrScopedFromRoot
	}
	return s.singleton(ctx, t, reg)
}

func (s *Services) singleton(ctx context.Context, t reflect.Type, reg registration) (any, error) {
	s.mu.RLock()
	v, ok := s.cache.get(t)
	closed := s.closed
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	if closed {
		return nil, ErrScopeClosed
	}

	built, err := reg.build(ctx, s)
	if err != nil {
		return nil, &FactoryError{Type: t, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache.get(t); ok {
		closeIfCloser(built)
		return existing, nil
	}
	s.cache.put(t, built, true)
	return built, nil
}

// Close closes built singletons in reverse order. It is idempotent.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	s.closeErr = s.cache.closeAll()
	return s.closeErr
}

// instances caches built values and remembers which ones to close.
type instances struct {
	values  map[reflect.Type]any
	closers []io.Closer
}

func (c *instances) get(t reflect.Type) (any, bool) {
	v, ok := c.values[t]
	return v, ok
}

func (c *instances) put(t reflect.Type, v any, owned bool) {
	if c.values == nil {
		c.values = make(map[reflect.Type]any)
	}
	c.values[t] = v
	if closer, ok := v.(io.Closer); ok && owned {
		c.closers = append(c.closers, closer)
	}
}

func (c *instances) closeAll() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	c.values = nil
	return errors.Join(errs...)
}

func closeIfCloser(v any) {
	if closer, ok := v.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Get resolves a required service, like GetRequiredService. Missing
// registrations yield an error matching ErrServiceNotFound.
func Get[T any](ctx context.Context, r Resolver) (T, error) {
	var zero T
	if r == nil {
		return zero, &ServiceNotFoundError{Type: reflect.TypeFor[T]()}
	}
	v, err := r.Resolve(ctx, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &ServiceNotFoundError{Type: reflect.TypeFor[T]()}
	}
	return typed, nil
}

// Lookup resolves an optional service, like GetService: a missing
// registration returns ok == false with a nil error.
func Lookup[T any](ctx context.Context, r Resolver) (v T, ok bool, err error) {
	v, err = Get[T](ctx, r)
	if errors.Is(err, ErrServiceNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}
