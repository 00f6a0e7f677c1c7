// Package chain provides a fluent if / else-if / else construct over a host
// handle, for branching startup code on runtime conditions:
//
//	h, err := chain.ExecuteOnDevelopment(ctx, app, seedDemoData).
//		ElseIf(ctx, chain.Staging[*host.App](), warmCaches).
//		Else(ctx, chain.Then(func(a *host.App) *host.App { return a }))
//
// At most one action runs per chain, predicates after the first true one are
// never evaluated, and everything runs on the caller's goroutine. Errors from
// predicates and actions are not handled; the first one is carried through
// the chain and returned by Else or Result.
package chain
