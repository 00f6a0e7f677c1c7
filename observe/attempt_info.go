package observe

import "context"

type attemptInfoKey struct{}

// AttemptInfo is per-attempt metadata attached to the attempt context.
type AttemptInfo struct {
	Key string
	// Attempt is 1-based; RetryIndex counts the retries that preceded it.
	Attempt     int
	RetryIndex  int
	MaxAttempts int
	PolicyID    string
}

// WithAttemptInfo returns a context derived from ctx that carries info.
func WithAttemptInfo(ctx context.Context, info AttemptInfo) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, info)
}

// AttemptFromContext returns the AttemptInfo from ctx, if present.
func AttemptFromContext(ctx context.Context) (AttemptInfo, bool) {
	if ctx == nil {
		return AttemptInfo{}, false
	}
	info, ok := ctx.Value(attemptInfoKey{}).(AttemptInfo)
	return info, ok
}

// IsRetry reports whether ctx belongs to an attempt after the first.
func IsRetry(ctx context.Context) bool {
	info, ok := AttemptFromContext(ctx)
	return ok && info.RetryIndex > 0
}
