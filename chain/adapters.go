package chain

import "context"

// When adapts a plain boolean check.
func When[H any](fn func(h H) bool) Predicate[H] {
	return func(_ context.Context, h H) (bool, error) {
		return fn(h), nil
	}
}

// WhenFuture adapts a check whose answer arrives later.
func WhenFuture[H any](fn func(ctx context.Context, h H) *Future[bool]) Predicate[H] {
	return func(ctx context.Context, h H) (bool, error) {
		return fn(ctx, h).Await(ctx)
	}
}

// Then adapts a plain transformation.
func Then[H any](fn func(h H) H) Action[H] {
	return func(_ context.Context, h H) (H, error) {
		return fn(h), nil
	}
}

// ThenFuture adapts a transformation whose result arrives later.
func ThenFuture[H any](fn func(ctx context.Context, h H) *Future[H]) Action[H] {
	return func(ctx context.Context, h H) (H, error) {
		return fn(ctx, h).Await(ctx)
	}
}

// Do adapts a side effect that keeps the handle unchanged.
func Do[H any](fn func(ctx context.Context, h H) error) Action[H] {
	return func(ctx context.Context, h H) (H, error) {
		return h, fn(ctx, h)
	}
}

// Always is a predicate that holds.
func Always[H any]() Predicate[H] {
	return func(context.Context, H) (bool, error) { return true, nil }
}
