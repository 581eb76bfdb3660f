// Package trace defines the opaque observability hook boundary. The
// gateway passes hooks through to the model-invocation layer unmodified
// and never inspects what a hook does with the data.
package trace

import "context"

// Hook receives callbacks around a single model invocation. Implementations
// live outside the core (analytics exporters, eval capture); an empty hook
// list is always valid.
type Hook interface {
	// BeforeInvoke fires immediately before the provider call.
	BeforeInvoke(ctx context.Context, model string)
	// AfterInvoke fires after the provider call returns, with the
	// invocation error, if any.
	AfterInvoke(ctx context.Context, model string, err error)
}
