package executor

import (
	"context"

	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// Message-send handlers. A failed send is recorded into the node's
// variable namespace and the run continues down the default exit; one
// undeliverable message must not strand the conversation.

func (ex *Executor) executeMessage(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.MessageConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	res := ex.messenger().SendText(ctx, conversationID, vars.Interpolate(cfg.Text))
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return advance()
	}
	recordSend(node, vars, res.Payload)
	return advance()
}

func (ex *Executor) executeMedia(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.MediaConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.URL = vars.Interpolate(cfg.URL)
	cfg.Caption = vars.Interpolate(cfg.Caption)
	cfg.Filename = vars.Interpolate(cfg.Filename)

	res := ex.messenger().SendMedia(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return advance()
	}
	recordSend(node, vars, res.Payload)
	return advance()
}

func (ex *Executor) executeTemplate(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.TemplateConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Params = vars.InterpolateSlice(cfg.Params)

	res := ex.messenger().SendTemplate(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return advance()
	}
	recordSend(node, vars, res.Payload)
	return advance()
}

func (ex *Executor) executeCTA(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.CTAConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Text = vars.Interpolate(cfg.Text)
	cfg.ButtonText = vars.Interpolate(cfg.ButtonText)
	cfg.URL = vars.Interpolate(cfg.URL)

	res := ex.messenger().SendCTA(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return advance()
	}
	recordSend(node, vars, res.Payload)
	return advance()
}

func (ex *Executor) executeLocation(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.LocationConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Name = vars.Interpolate(cfg.Name)
	cfg.Address = vars.Interpolate(cfg.Address)

	res := ex.messenger().SendLocation(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return advance()
	}
	recordSend(node, vars, res.Payload)
	return advance()
}
