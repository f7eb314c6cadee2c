// Package executor implements per-node-type execution. Each handler
// decodes its typed config, interpolates variables, performs its side
// effect, writes results back into the variable store under the node's ID,
// and tells the engine how to advance.
package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/chatforge/chatforge/internal/adapters"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// StepResult tells the engine how to advance after one node.
type StepResult struct {
	// Pause suspends the run; Waiting names what the conversation waits
	// for. Set only by interactive nodes after a successful send.
	Pause   bool
	Waiting schema.WaitKind
	// Next jumps directly to a named node, bypassing edge lookup.
	// Condition branches use it.
	Next string
	// Handle selects the outgoing edge by source handle. Empty means the
	// node's default exit.
	Handle string
	// End terminates this path.
	End bool
	// Err aborts the run. Node handlers almost never set it: adapter and
	// expression failures are soft and recorded into variables instead.
	Err error
}

func advance() StepResult             { return StepResult{} }
func jump(next string) StepResult     { return StepResult{Next: next} }
func exit(handle string) StepResult   { return StepResult{Handle: handle} }
func end() StepResult                 { return StepResult{End: true} }
func failed(err error) StepResult     { return StepResult{Err: err} }
func pause(w schema.WaitKind) StepResult {
	return StepResult{Pause: true, Waiting: w}
}

// Executor dispatches nodes to their type handlers.
type Executor struct {
	adapters *adapters.Registry
	logger   *slog.Logger
	http     *resty.Client
}

// New creates an Executor. A nil registry behaves as a registry with no
// adapters wired: every side-effect node records a soft failure.
func New(reg *adapters.Registry, logger *slog.Logger) *Executor {
	if reg == nil {
		reg = &adapters.Registry{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		adapters: reg,
		logger:   logger,
		http:     resty.New(),
	}
}

// Execute runs one node against the variable store and returns how to
// advance. Unknown node types are skipped with a warning so that flows
// authored against a newer editor degrade instead of breaking.
func (ex *Executor) Execute(ctx context.Context, node *schema.Node, vars *variables.Store, conversationID string) StepResult {
	switch node.Type {
	case schema.NodeTypeTrigger, schema.NodeTypeWebhookTrigger:
		// Pass-through: trigger input was seeded before the run started.
		return advance()

	case schema.NodeTypeMessage:
		return ex.executeMessage(ctx, node, vars, conversationID)
	case schema.NodeTypeMedia:
		return ex.executeMedia(ctx, node, vars, conversationID)
	case schema.NodeTypeTemplate:
		return ex.executeTemplate(ctx, node, vars, conversationID)
	case schema.NodeTypeCTA:
		return ex.executeCTA(ctx, node, vars, conversationID)
	case schema.NodeTypeLocation:
		return ex.executeLocation(ctx, node, vars, conversationID)

	case schema.NodeTypeButtons:
		return ex.executeButtons(ctx, node, vars, conversationID)
	case schema.NodeTypeList:
		return ex.executeList(ctx, node, vars, conversationID)
	case schema.NodeTypeFlowForm:
		return ex.executeFlowForm(ctx, node, vars, conversationID)
	case schema.NodeTypeQuestion:
		return ex.executeQuestion(ctx, node, vars, conversationID)
	case schema.NodeTypeLocationRequest:
		return ex.executeLocationRequest(ctx, node, vars, conversationID)

	case schema.NodeTypeDelay:
		return ex.executeDelay(ctx, node, vars)
	case schema.NodeTypeHTTP:
		return ex.executeHTTP(ctx, node, vars)
	case schema.NodeTypeCondition:
		return ex.executeCondition(ctx, node, vars)
	case schema.NodeTypeTransform:
		return ex.executeTransform(ctx, node, vars)

	case schema.NodeTypeAI:
		return ex.executeAI(ctx, node, vars)
	case schema.NodeTypeEmail:
		return ex.executeEmail(ctx, node, vars)
	case schema.NodeTypeSheets:
		return ex.executeSheets(ctx, node, vars)
	case schema.NodeTypeDatabase:
		return ex.executeDatabase(ctx, node, vars)

	default:
		ex.logger.WarnContext(ctx, "unknown node type, skipping",
			"node_id", node.ID, "node_type", string(node.Type))
		return advance()
	}
}

// decodeConfig unmarshals a node config into its typed struct. A missing
// config decodes to the zero value.
func decodeConfig(node *schema.Node, out any) error {
	if len(node.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(node.Config, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid config: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	return nil
}

// recordFailure writes a soft failure into the node's variable namespace.
func (ex *Executor) recordFailure(ctx context.Context, node *schema.Node, vars *variables.Store, err error) {
	ex.logger.WarnContext(ctx, "node failed, continuing",
		"node_id", node.ID, "node_type", string(node.Type), "error", err)
	vars.SetResult(node.ID, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

// recordSend writes a successful send into the node's variable namespace.
func recordSend(node *schema.Node, vars *variables.Store, payload map[string]any) {
	fields := map[string]any{"success": true}
	for k, v := range payload {
		fields[k] = v
	}
	vars.SetResult(node.ID, fields)
}

// messenger returns the wired Messenger, or a stub whose every send fails
// softly when no channel integration is configured.
func (ex *Executor) messenger() adapters.Messenger {
	if ex.adapters.Messenger != nil {
		return ex.adapters.Messenger
	}
	return unwiredMessenger{}
}

type unwiredMessenger struct{}

func unwired() adapters.Result {
	return adapters.Fail(schema.NewError(schema.ErrCodeAdapter, "no messenger configured"))
}

func (unwiredMessenger) SendText(context.Context, string, string) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendMedia(context.Context, string, schema.MediaConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendTemplate(context.Context, string, schema.TemplateConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendCTA(context.Context, string, schema.CTAConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendLocation(context.Context, string, schema.LocationConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendButtons(context.Context, string, schema.ButtonsConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendList(context.Context, string, schema.ListConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) SendFlowForm(context.Context, string, schema.FlowFormConfig) adapters.Result {
	return unwired()
}
func (unwiredMessenger) RequestLocation(context.Context, string, string) adapters.Result {
	return unwired()
}

// exprData builds the evaluation environment shared by condition and
// transform nodes: the flat variable map under "vars", plus every dot-free
// key at the top level for direct reference.
func exprData(vars *variables.Store) map[string]any {
	flat := vars.All()
	data := map[string]any{"vars": flat}
	for k, v := range flat {
		if !strings.Contains(k, ".") {
			data[k] = v
		}
	}
	return data
}
