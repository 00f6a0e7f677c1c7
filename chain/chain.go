package chain

import (
	"context"
	"errors"
)

// ErrNilPredicate is carried by a chain built with a nil predicate.
var ErrNilPredicate = errors.New("hostkit: nil predicate")

// Predicate decides whether a branch fires.
type Predicate[H any] func(ctx context.Context, h H) (bool, error)

// Action is a branch body. It returns the handle that continues down the chain.
type Action[H any] func(ctx context.Context, h H) (H, error)

// Chain carries a host handle through a sequence of conditional branches.
// The zero value is an untaken chain over the zero handle.
type Chain[H any] struct {
	host  H
	taken bool
	err   error
}

// ExecuteIf evaluates pred against h and runs act when it holds. A nil act
// leaves the handle unchanged.
func ExecuteIf[H any](ctx context.Context, h H, pred Predicate[H], act Action[H]) Chain[H] {
	if pred == nil {
		return Chain[H]{host: h, err: ErrNilPredicate}
	}
	ok, err := pred(ctx, h)
	if err != nil {
		return Chain[H]{host: h, err: err}
	}
	if !ok {
		return Chain[H]{host: h}
	}
	if act == nil {
		return Chain[H]{host: h, taken: true}
	}
	next, err := act(ctx, h)
	if err != nil {
		return Chain[H]{host: h, taken: true, err: err}
	}
	return Chain[H]{host: next, taken: true}
}

// ElseIf tries another branch when no earlier one fired.
func (c Chain[H]) ElseIf(ctx context.Context, pred Predicate[H], act Action[H]) Chain[H] {
	if c.taken || c.err != nil {
		return c
	}
	return ExecuteIf(ctx, c.host, pred, act)
}

// Else ends the chain, running act only when no branch fired.
func (c Chain[H]) Else(ctx context.Context, act Action[H]) (H, error) {
	if c.taken || c.err != nil || act == nil {
		return c.host, c.err
	}
	return act(ctx, c.host)
}

// Result ends the chain without a fallback branch.
func (c Chain[H]) Result() (H, error) {
	return c.host, c.err
}

// Host returns the carried handle.
func (c Chain[H]) Host() H { return c.host }

// Taken reports whether a branch fired. Further branches are then skipped.
func (c Chain[H]) Taken() bool { return c.taken }

// Err returns the first predicate or action failure.
func (c Chain[H]) Err() error { return c.err }
