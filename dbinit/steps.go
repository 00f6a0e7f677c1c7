package dbinit

import (
	"context"
	"errors"

	"github.com/aponysus/hostkit/chain"
	"github.com/aponysus/hostkit/host"
)

// Step is one initialization bound to its target, seeder and options.
type Step func(ctx context.Context, h host.Host) (host.Host, Outcome)

// NewStep binds Initialize to a target so steps for different context types
// can be run together.
func NewStep[C any](target Target[C], seeder Seeder[C], opts ...Option) Step {
	return func(ctx context.Context, h host.Host) (host.Host, Outcome) {
		return Initialize(ctx, h, target, seeder, opts...)
	}
}

// Outcomes is the result of InitializeAll, in step order.
type Outcomes []Outcome

// Failed returns the outcomes that did not succeed.
func (oc Outcomes) Failed() Outcomes {
	var out Outcomes
	for _, o := range oc {
		if !o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// Err joins the errors of failed outcomes, for callers that want to stop on
// a failed initialization. It is nil when every step succeeded.
func (oc Outcomes) Err() error {
	var errs []error
	for _, o := range oc.Failed() {
		err := o.Err
		if err == nil {
			err = errors.New(o.Context + ": initialization failed")
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// InitializeAll runs steps in order. A failed step does not stop later ones.
func InitializeAll(ctx context.Context, h host.Host, steps ...Step) (host.Host, Outcomes) {
	outcomes := make(Outcomes, 0, len(steps))
	for _, step := range steps {
		if step == nil {
			continue
		}
		var out Outcome
		h, out = step(ctx, h)
		outcomes = append(outcomes, out)
	}
	return h, outcomes
}

// Action adapts Initialize for use as a chain branch. The branch never
// fails; the outcome goes to the options' recorder, if any.
func Action[H host.Host, C any](target Target[C], seeder Seeder[C], opts ...Option) chain.Action[H] {
	return func(ctx context.Context, h H) (H, error) {
		Initialize(ctx, h, target, seeder, opts...)
		return h, nil
	}
}
