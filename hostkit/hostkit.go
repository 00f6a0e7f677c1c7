// Package hostkit is the short import for startup code: conditional chains,
// guarded database initialization and keyed retries on the default executor.
package hostkit

import (
	"context"

	"github.com/aponysus/hostkit/chain"
	"github.com/aponysus/hostkit/dbinit"
	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/observe"
	"github.com/aponysus/hostkit/policy"
	"github.com/aponysus/hostkit/retry"
)

// Version is reported by the CLI.
const Version = "0.3.0"

// Key is the structured form of a policy key.
type Key = policy.PolicyKey

// ParseKey parses "namespace.name" into a Key.
func ParseKey(s string) Key { return policy.ParseKey(s) }

// Init sets the global default executor used by Do and DoValue.
func Init(exec *retry.Executor) {
	retry.SetGlobal(exec)
}

// Do executes op using the default executor and the policy for key.
func Do(ctx context.Context, key string, op retry.Operation) error {
	return retry.DefaultExecutor().Do(ctx, policy.ParseKey(key), op)
}

// DoValue executes op using the default executor and the policy for key.
func DoValue[T any](ctx context.Context, key string, op retry.OperationValue[T]) (T, error) {
	return retry.DoValue(ctx, retry.DefaultExecutor(), policy.ParseKey(key), op)
}

// DoWithTimeline executes op using the default executor and returns the Timeline.
func DoWithTimeline(ctx context.Context, key string, op retry.Operation) (observe.Timeline, error) {
	return retry.DefaultExecutor().DoWithTimeline(ctx, policy.ParseKey(key), op)
}

// ExecuteIf starts a conditional chain on h.
func ExecuteIf[H any](ctx context.Context, h H, pred chain.Predicate[H], act chain.Action[H]) chain.Chain[H] {
	return chain.ExecuteIf(ctx, h, pred, act)
}

// ExecuteOnDevelopment starts a chain whose first branch runs only in Development.
func ExecuteOnDevelopment[H host.Host](ctx context.Context, h H, act chain.Action[H]) chain.Chain[H] {
	return chain.ExecuteOnDevelopment(ctx, h, act)
}

// Initialize migrates and optionally seeds target, logging and swallowing
// any failure. See dbinit.Initialize.
func Initialize[C any](ctx context.Context, h host.Host, target dbinit.Target[C], seeder dbinit.Seeder[C], opts ...dbinit.Option) (host.Host, dbinit.Outcome) {
	return dbinit.Initialize(ctx, h, target, seeder, opts...)
}
