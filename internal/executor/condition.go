package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chatforge/chatforge/internal/expressions"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// executeCondition routes the run. Two modes:
//
// Case mode: ordered (variable, operator, value) cases, first match wins.
// A matched case jumps to its next pointer, or exits through the handle
// "case-<index>" when it has none. No match falls to default_next, else
// the "else" handle.
//
// Expression mode: the configured engine evaluates the expression; truthy
// routes to true_next (or the "true" handle), falsy to false_next (or the
// "false" handle). Evaluation errors route the falsy way, a broken
// expression must not strand the conversation.
func (ex *Executor) executeCondition(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.ConditionConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return end()
	}

	if cfg.Expression != "" {
		return ex.conditionExpression(ctx, node, &cfg, vars)
	}

	for i, c := range cfg.Conditions {
		actual, _ := vars.Resolve(c.Variable)
		if looseCompare(actual, c.Value, c.Operator) {
			vars.SetResult(node.ID, map[string]any{
				"matched":  true,
				"case":     i,
				"variable": c.Variable,
			})
			if c.Next != "" {
				return jump(c.Next)
			}
			return exit(fmt.Sprintf("case-%d", i))
		}
	}

	vars.SetResult(node.ID, map[string]any{"matched": false})
	if cfg.DefaultNext != "" {
		return jump(cfg.DefaultNext)
	}
	return exit("else")
}

func (ex *Executor) conditionExpression(ctx context.Context, node *schema.Node, cfg *schema.ConditionConfig, vars *variables.Store) StepResult {
	truthy := false

	eng, err := expressions.ForName(cfg.Engine)
	if err == nil {
		var out any
		out, err = eng.Evaluate(ctx, cfg.Expression, exprData(vars))
		if err == nil {
			truthy = isTruthy(out)
		}
	}
	if err != nil {
		ex.logger.WarnContext(ctx, "condition expression failed, taking false branch",
			"node_id", node.ID, "error", err)
	}

	vars.SetResult(node.ID, map[string]any{"matched": truthy})
	if truthy {
		if cfg.TrueNext != "" {
			return jump(cfg.TrueNext)
		}
		return exit("true")
	}
	if cfg.FalseNext != "" {
		return jump(cfg.FalseNext)
	}
	return exit("false")
}

// looseCompare applies an operator with loose typing: values that both
// parse as numbers compare numerically, so "5" == 5 and "10" > 9 hold.
// Everything else compares as strings.
func looseCompare(actual, expected any, operator string) bool {
	switch operator {
	case "", "==", "equals":
		return looseEqual(actual, expected)
	case "!=", "not_equals":
		return !looseEqual(actual, expected)
	case ">", "<", ">=", "<=":
		return looseOrder(actual, expected, operator)
	case "contains":
		return looseContains(actual, expected)
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
	}
	return variables.Stringify(a) == variables.Stringify(b)
}

func looseOrder(a, b any, operator string) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if !aok || !bok {
		// Lexicographic fallback for non-numeric operands.
		as, bs := variables.Stringify(a), variables.Stringify(b)
		switch operator {
		case ">":
			return as > bs
		case "<":
			return as < bs
		case ">=":
			return as >= bs
		case "<=":
			return as <= bs
		}
		return false
	}
	switch operator {
	case ">":
		return af > bf
	case "<":
		return af < bf
	case ">=":
		return af >= bf
	case "<=":
		return af <= bf
	}
	return false
}

func looseContains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(variables.Stringify(haystack), variables.Stringify(needle))
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// isTruthy interprets an expression result as a branch decision: false,
// nil, zero, empty string, and empty collections are falsy.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if f, ok := toNumber(v); ok {
			return f != 0
		}
		return true
	}
}
