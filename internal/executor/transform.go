package executor

import (
	"context"

	"github.com/chatforge/chatforge/internal/expressions"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// executeTransform evaluates a sandboxed expression and stores the result
// in the variable store. The result lands under the node's ID namespace
// ("<node>.result") and, when the config names an extra variable, under
// that key as well. Structured results are flattened so later nodes can
// address their fields with dotted paths.
func (ex *Executor) executeTransform(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.TransformConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	eng, err := expressions.ForName(cfg.Engine)
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	out, err := eng.Evaluate(ctx, cfg.Expression, exprData(vars))
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	vars.SetResult(node.ID, map[string]any{"success": true, "result": out})
	switch out.(type) {
	case map[string]any, []any:
		vars.Flatten(node.ID+".result", out)
		if cfg.Variable != "" {
			vars.Set(cfg.Variable, out)
			vars.Flatten(cfg.Variable, out)
		}
	default:
		if cfg.Variable != "" {
			vars.Set(cfg.Variable, out)
		}
	}
	return advance()
}
