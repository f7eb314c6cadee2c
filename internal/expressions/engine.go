// Package expressions provides sandboxed expression evaluation for
// transform and condition nodes. There is deliberately no general-purpose
// code-eval primitive: flow authors get a restricted expression grammar
// with no ambient access to the process, filesystem, or network.
package expressions

import "context"

// Engine evaluates one expression language against run data.
type Engine interface {
	// Name returns the engine identifier ("expr", "cel", "jq").
	Name() string
	// Evaluate runs the expression against the provided data map.
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
