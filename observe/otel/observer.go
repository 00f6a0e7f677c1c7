// Package otel records retry activity as events on the active span.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
)

// Observer adds span events to trace.SpanFromContext(ctx). Calls without a
// recording span are ignored.
type Observer struct{}

func New() Observer { return Observer{} }

func (Observer) OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("retry.start", trace.WithAttributes(
		attribute.String("retry.key", key.String()),
		attribute.Int("retry.max_attempts", pol.Retry.MaxAttempts),
		attribute.String("retry.policy_source", string(pol.Meta.Source)),
	))
}

func (Observer) OnAttempt(ctx context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("retry.key", key.String()),
		attribute.Int("retry.attempt", rec.Attempt),
		attribute.String("retry.outcome", rec.Outcome.Kind.String()),
		attribute.Bool("retry.retrying", rec.Retrying),
	}
	if rec.Outcome.ErrorKind != "" {
		attrs = append(attrs, attribute.String("retry.error_kind", string(rec.Outcome.ErrorKind)))
	}
	if rec.Retrying {
		attrs = append(attrs, attribute.Int64("retry.next_backoff_ms", rec.NextBackoff.Milliseconds()))
	}
	if rec.Err != nil {
		attrs = append(attrs, attribute.String("retry.error", rec.Err.Error()))
	}
	span.AddEvent("retry.attempt", trace.WithAttributes(attrs...))
}

func (Observer) OnSuccess(ctx context.Context, key policy.PolicyKey, tl observe.Timeline) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("retry.success", trace.WithAttributes(
		attribute.String("retry.key", key.String()),
		attribute.Int("retry.attempts", len(tl.Attempts)),
	))
}

func (Observer) OnFailure(ctx context.Context, key policy.PolicyKey, tl observe.Timeline) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("retry.failure", trace.WithAttributes(
		attribute.String("retry.key", key.String()),
		attribute.Int("retry.attempts", len(tl.Attempts)),
	))
	if tl.FinalErr != nil {
		span.RecordError(tl.FinalErr)
		span.SetStatus(codes.Error, tl.FinalErr.Error())
	}
}
