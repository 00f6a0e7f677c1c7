package observe

import (
	"context"
	"log/slog"

	"github.com/aponysus/hostkit/policy"
)

// LogObserver writes retry lifecycle events to a slog.Logger. It warns once
// per scheduled retry and stays at debug level otherwise; reporting the final
// failure is left to the caller.
type LogObserver struct {
	Logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *LogObserver) OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy) {
	o.logger().DebugContext(ctx, "retry call started",
		"key", key.String(),
		"max_attempts", pol.Retry.MaxAttempts,
		"source", string(pol.Meta.Source),
	)
}

func (o *LogObserver) OnAttempt(ctx context.Context, key policy.PolicyKey, rec AttemptRecord) {
	if !rec.Retrying {
		return
	}
	o.logger().WarnContext(ctx, "attempt failed, retrying",
		"key", key.String(),
		"attempt", rec.Attempt,
		"delay", rec.NextBackoff,
		"reason", rec.Outcome.Reason,
		"error", rec.Err,
	)
}

func (o *LogObserver) OnSuccess(ctx context.Context, key policy.PolicyKey, tl Timeline) {
	o.logger().DebugContext(ctx, "retry call succeeded",
		"key", key.String(),
		"attempts", len(tl.Attempts),
		"elapsed", tl.End.Sub(tl.Start),
	)
}

func (o *LogObserver) OnFailure(ctx context.Context, key policy.PolicyKey, tl Timeline) {
	o.logger().DebugContext(ctx, "retry call failed",
		"key", key.String(),
		"attempts", len(tl.Attempts),
		"error", tl.FinalErr,
	)
}
