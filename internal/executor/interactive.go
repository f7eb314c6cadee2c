package executor

import (
	"context"

	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// Interactive handlers suspend the run only after the outbound prompt was
// actually delivered. A failed send ends the path silently: the
// conversation never saw the question, so neither parking it nor running
// the nodes that assume an answer would make sense.

func (ex *Executor) executeButtons(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.ButtonsConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Text = vars.Interpolate(cfg.Text)
	for i := range cfg.Buttons {
		cfg.Buttons[i].Title = vars.Interpolate(cfg.Buttons[i].Title)
	}

	res := ex.messenger().SendButtons(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return end()
	}
	recordSend(node, vars, res.Payload)
	return pause(schema.WaitButton)
}

func (ex *Executor) executeList(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.ListConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Text = vars.Interpolate(cfg.Text)
	for si := range cfg.Sections {
		cfg.Sections[si].Title = vars.Interpolate(cfg.Sections[si].Title)
		for ri := range cfg.Sections[si].Rows {
			cfg.Sections[si].Rows[ri].Title = vars.Interpolate(cfg.Sections[si].Rows[ri].Title)
			cfg.Sections[si].Rows[ri].Description = vars.Interpolate(cfg.Sections[si].Rows[ri].Description)
		}
	}

	res := ex.messenger().SendList(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return end()
	}
	recordSend(node, vars, res.Payload)
	return pause(schema.WaitList)
}

func (ex *Executor) executeFlowForm(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.FlowFormConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	cfg.Text = vars.Interpolate(cfg.Text)
	cfg.FlowCTA = vars.Interpolate(cfg.FlowCTA)

	res := ex.messenger().SendFlowForm(ctx, conversationID, cfg)
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return end()
	}
	recordSend(node, vars, res.Payload)
	return pause(schema.WaitFlow)
}

func (ex *Executor) executeQuestion(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.QuestionConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	res := ex.messenger().SendText(ctx, conversationID, vars.Interpolate(cfg.Text))
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return end()
	}
	recordSend(node, vars, res.Payload)
	return pause(schema.WaitMessage)
}

func (ex *Executor) executeLocationRequest(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	var cfg schema.LocationRequestConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	res := ex.messenger().RequestLocation(ctx, conversationID, vars.Interpolate(cfg.Text))
	if !res.Success {
		ex.recordFailure(ctx, node, vars, res.Err)
		return end()
	}
	recordSend(node, vars, res.Payload)
	return pause(schema.WaitLocation)
}
