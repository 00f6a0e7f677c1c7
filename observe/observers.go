package observe

import (
	"context"

	"github.com/aponysus/hostkit/policy"
)

// BaseObserver implements Observer with no-op methods.
//
// Embed it to implement only the callbacks you need.
type BaseObserver struct{}

func (BaseObserver) OnStart(context.Context, policy.PolicyKey, policy.EffectivePolicy) {}
func (BaseObserver) OnAttempt(context.Context, policy.PolicyKey, AttemptRecord)        {}
func (BaseObserver) OnSuccess(context.Context, policy.PolicyKey, Timeline)             {}
func (BaseObserver) OnFailure(context.Context, policy.PolicyKey, Timeline)             {}

// MultiObserver fans out events to multiple observers in order.
type MultiObserver struct {
	Observers []Observer
}

// Combine returns a single Observer for obs, skipping nils.
func Combine(obs ...Observer) Observer {
	out := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NoopObserver{}
	case 1:
		return out[0]
	default:
		return MultiObserver{Observers: out}
	}
}

func (m MultiObserver) OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnStart(ctx, key, pol)
		}
	}
}

func (m MultiObserver) OnAttempt(ctx context.Context, key policy.PolicyKey, rec AttemptRecord) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnAttempt(ctx, key, rec)
		}
	}
}

func (m MultiObserver) OnSuccess(ctx context.Context, key policy.PolicyKey, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnSuccess(ctx, key, tl)
		}
	}
}

func (m MultiObserver) OnFailure(ctx context.Context, key policy.PolicyKey, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnFailure(ctx, key, tl)
		}
	}
}
