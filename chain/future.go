package chain

import (
	"context"
	"errors"
)

// ErrNilFuture is returned when awaiting a nil *Future.
var ErrNilFuture = errors.New("hostkit: nil future")

// Future is a value that is either available now or produced later.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v, err: err}
	close(f.done)
	return f
}

// Ready returns an already completed Future.
func Ready[T any](v T) *Future[T] {
	return resolved(v, nil)
}

// Failed returns an already failed Future.
func Failed[T any](err error) *Future[T] {
	var zero T
	return resolved(zero, err)
}

// Go starts fn on a new goroutine and returns its Future. fn receives ctx and
// should stop when it is done.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the value is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the value is available or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if f == nil {
		return zero, ErrNilFuture
	}
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
