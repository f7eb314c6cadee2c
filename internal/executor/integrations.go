package executor

import (
	"context"

	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// Integration handlers. Each requires its adapter to be wired; without one
// the node records a soft failure and the run continues.

func (ex *Executor) executeAI(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.AIConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}
	if ex.adapters.AI == nil {
		ex.recordFailure(ctx, node, vars,
			schema.NewError(schema.ErrCodeAdapter, "no ai client configured").WithNode(node.ID))
		return advance()
	}

	reply, err := ex.adapters.AI.Complete(ctx, vars.Interpolate(cfg.Prompt), cfg.Model)
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	vars.SetResult(node.ID, map[string]any{"success": true, "response": reply})
	return advance()
}

func (ex *Executor) executeEmail(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.EmailConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}
	if ex.adapters.Email == nil {
		ex.recordFailure(ctx, node, vars,
			schema.NewError(schema.ErrCodeAdapter, "no email sender configured").WithNode(node.ID))
		return advance()
	}

	err := ex.adapters.Email.Send(ctx,
		vars.Interpolate(cfg.To),
		vars.Interpolate(cfg.Subject),
		vars.Interpolate(cfg.Body))
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	vars.SetResult(node.ID, map[string]any{"success": true})
	return advance()
}

func (ex *Executor) executeSheets(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.SheetsConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}
	if ex.adapters.Sheets == nil {
		ex.recordFailure(ctx, node, vars,
			schema.NewError(schema.ErrCodeAdapter, "no sheets client configured").WithNode(node.ID))
		return advance()
	}

	err := ex.adapters.Sheets.AppendRow(ctx, cfg.SpreadsheetID, cfg.Range, vars.InterpolateSlice(cfg.Values))
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	vars.SetResult(node.ID, map[string]any{"success": true})
	return advance()
}

func (ex *Executor) executeDatabase(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.DatabaseConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}
	if ex.adapters.Database == nil {
		ex.recordFailure(ctx, node, vars,
			schema.NewError(schema.ErrCodeAdapter, "no database client configured").WithNode(node.ID))
		return advance()
	}

	rows, err := ex.adapters.Database.Query(ctx, cfg.Query, vars.InterpolateSlice(cfg.Params))
	if err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	vars.SetResult(node.ID, map[string]any{"success": true, "rows": rows})
	return advance()
}
