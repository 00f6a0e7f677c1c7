// Package prometheus exports retry activity as Prometheus metrics.
package prometheus

import (
	"context"
	"errors"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
)

const namespace = "hostkit"

// Observer implements observe.Observer on top of Prometheus collectors.
type Observer struct {
	observe.BaseObserver

	calls    *prom.CounterVec
	attempts *prom.CounterVec
	retries  *prom.CounterVec
	duration *prom.HistogramVec
}

// New creates the collectors and registers them with reg. Collectors that are
// already registered are reused.
func New(reg prom.Registerer) (*Observer, error) {
	o := &Observer{
		calls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "calls_total",
			Help:      "Retried calls by policy key and result.",
		}, []string{"key", "result"}),
		attempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Attempts by policy key and classified outcome.",
		}, []string{"key", "outcome"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "retries_total",
			Help:      "Scheduled retries by policy key.",
		}, []string{"key"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "call_duration_seconds",
			Help:      "Wall time of a retried call including waits.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 3, 8, 16, 30, 60},
		}, []string{"key"}),
	}

	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	var err error
	o.calls, err = register(reg, o.calls)
	if err != nil {
		return nil, err
	}
	if o.attempts, err = register(reg, o.attempts); err != nil {
		return nil, err
	}
	if o.retries, err = register(reg, o.retries); err != nil {
		return nil, err
	}
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prom.Collector](reg prom.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (o *Observer) OnAttempt(_ context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	k := key.String()
	o.attempts.WithLabelValues(k, rec.Outcome.Kind.String()).Inc()
	if rec.Retrying {
		o.retries.WithLabelValues(k).Inc()
	}
}

func (o *Observer) OnSuccess(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.finish(key, tl, "success")
}

func (o *Observer) OnFailure(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.finish(key, tl, "failure")
}

func (o *Observer) finish(key policy.PolicyKey, tl observe.Timeline, result string) {
	k := key.String()
	o.calls.WithLabelValues(k, result).Inc()
	if !tl.Start.IsZero() && !tl.End.IsZero() {
		o.duration.WithLabelValues(k).Observe(tl.End.Sub(tl.Start).Seconds())
	}
}
