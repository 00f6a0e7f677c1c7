package chain

import (
	"context"

	"github.com/aponysus/hostkit/host"
)

// Environment holds when the host runs in the named environment.
func Environment[H host.Host](name string) Predicate[H] {
	return func(_ context.Context, h H) (bool, error) {
		return h.Environment().Is(name), nil
	}
}

// Development holds when the host runs in Development.
func Development[H host.Host]() Predicate[H] { return Environment[H](string(host.Development)) }

// Staging holds when the host runs in Staging.
func Staging[H host.Host]() Predicate[H] { return Environment[H](string(host.Staging)) }

// Production holds when the host runs in Production.
func Production[H host.Host]() Predicate[H] { return Environment[H](string(host.Production)) }

// ExecuteOnDevelopment runs act when h is in Development. The returned chain
// accepts ElseIf and Else like any other.
func ExecuteOnDevelopment[H host.Host](ctx context.Context, h H, act Action[H]) Chain[H] {
	return ExecuteIf(ctx, h, Development[H](), act)
}

// ExecuteOnStaging runs act when h is in Staging.
func ExecuteOnStaging[H host.Host](ctx context.Context, h H, act Action[H]) Chain[H] {
	return ExecuteIf(ctx, h, Staging[H](), act)
}

// ExecuteOnProduction runs act when h is in Production.
func ExecuteOnProduction[H host.Host](ctx context.Context, h H, act Action[H]) Chain[H] {
	return ExecuteIf(ctx, h, Production[H](), act)
}
