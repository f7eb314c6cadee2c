// Package engine drives flow runs: it walks the node graph, delegates
// each node to the executor, journals progress, and parks or resumes
// conversations through the suspension registry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatforge/chatforge/internal/executor"
	"github.com/chatforge/chatforge/internal/flow"
	"github.com/chatforge/chatforge/internal/logging"
	"github.com/chatforge/chatforge/internal/registry"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// MaxSteps caps the number of node executions in one run segment. A cycle
// in the graph ends the run at the cap instead of spinning forever.
// Resuming a suspended run starts a fresh budget.
const MaxSteps = 50

// FlowSource loads flow documents by ID.
type FlowSource interface {
	Flow(ctx context.Context, flowID string) (*schema.FlowDocument, error)
}

// Journal records run events. Journaling is best-effort: a failing journal
// never fails the run.
type Journal interface {
	Record(ctx context.Context, event *schema.RunEvent) error
}

// Engine executes flows. Runs are fire-and-forget from the caller's
// perspective: Start and Resume return after the run segment completes,
// suspends, or hits the step cap, and callers that must not block invoke
// them from their own goroutine.
type Engine struct {
	source   FlowSource
	executor *executor.Executor
	registry registry.Registry
	journal  Journal
	logger   *slog.Logger
	baseURL  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal wires a run journal.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithBaseURL sets the public base URL exposed to flows as
// {{system.server_base_url}}.
func WithBaseURL(url string) Option {
	return func(e *Engine) { e.baseURL = url }
}

// New creates an Engine.
func New(source FlowSource, exec *executor.Executor, reg registry.Registry, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		source:   source,
		executor: exec,
		registry: reg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start runs a flow from its resolved start node.
func (e *Engine) Start(ctx context.Context, flowID, conversationID string, seed map[string]any) error {
	return e.start(ctx, flowID, "", conversationID, seed)
}

// StartAtNode runs a flow from a specific node, used by webhook triggers
// that address one trigger node among several.
func (e *Engine) StartAtNode(ctx context.Context, flowID, nodeID, conversationID string, seed map[string]any) error {
	return e.start(ctx, flowID, nodeID, conversationID, seed)
}

func (e *Engine) start(ctx context.Context, flowID, nodeID, conversationID string, seed map[string]any) error {
	g, err := e.loadGraph(ctx, flowID)
	if err != nil {
		return err
	}

	startID := g.StartNode()
	if nodeID != "" {
		if _, ok := g.Node(nodeID); !ok {
			return schema.NewErrorf(schema.ErrCodeGraph, "start node %s not in flow %s", nodeID, flowID).WithNode(nodeID)
		}
		startID = nodeID
	}

	executionID := uuid.NewString()
	ctx = logging.WithFlowID(ctx, flowID)
	ctx = logging.WithConversationID(ctx, conversationID)
	ctx = logging.WithExecutionID(ctx, executionID)

	vars := variables.NewSeeded(seed, variables.WithBaseURL(e.baseURL))

	e.record(ctx, flowID, executionID, conversationID, "", schema.EventRunStarted,
		map[string]any{"start_node": startID})
	e.logger.InfoContext(ctx, "run started", "start_node", startID)

	return e.run(ctx, g, flowID, executionID, conversationID, startID, vars)
}

// Resume continues a suspended run for a conversation. buildPayload maps
// the stored pause entry to the variables the inbound event contributes;
// it runs only when a paused entry exists. Returns false when the
// conversation was not waiting on anything.
func (e *Engine) Resume(ctx context.Context, conversationID string, buildPayload func(*registry.PausedExecution) map[string]any) (bool, error) {
	entry, err := e.registry.Lookup(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	// Consume the wait before executing anything: a reply is spent even
	// when the continuation fails.
	if err := e.registry.Remove(ctx, conversationID); err != nil {
		return false, err
	}

	ctx = logging.WithFlowID(ctx, entry.FlowID)
	ctx = logging.WithConversationID(ctx, conversationID)
	ctx = logging.WithExecutionID(ctx, entry.ExecutionID)

	g, err := e.loadGraph(ctx, entry.FlowID)
	if err != nil {
		e.logger.WarnContext(ctx, "resume dropped, flow unavailable", "error", err)
		return true, err
	}

	vars := variables.NewSeeded(entry.Variables, variables.WithBaseURL(e.baseURL))
	if buildPayload != nil {
		vars.Merge(buildPayload(entry))
	}

	e.record(ctx, entry.FlowID, entry.ExecutionID, conversationID, entry.NodeID,
		schema.EventRunResumed, map[string]any{"waiting_for": string(entry.Waiting)})
	e.logger.InfoContext(ctx, "run resumed", "paused_node", entry.NodeID)

	edge := g.FirstEdge(entry.NodeID)
	if edge == nil {
		e.record(ctx, entry.FlowID, entry.ExecutionID, conversationID, entry.NodeID,
			schema.EventPathEnded, nil)
		return true, nil
	}

	return true, e.run(ctx, g, entry.FlowID, entry.ExecutionID, conversationID, edge.Target, vars)
}

func (e *Engine) loadGraph(ctx context.Context, flowID string) (*flow.Graph, error) {
	doc, err := e.source.Flow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return flow.Parse(doc)
}

// run walks the graph from current until the path ends, suspends, fails,
// or exhausts the step budget. A panicking node handler fails the run
// instead of taking the process down.
func (e *Engine) run(ctx context.Context, g *flow.Graph, flowID, executionID, conversationID, current string, vars *variables.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = schema.NewErrorf(schema.ErrCodeExecution, "run panicked: %v", r)
			e.record(ctx, flowID, executionID, conversationID, current,
				schema.EventRunFailed, map[string]any{"panic": fmt.Sprint(r)})
			e.logger.ErrorContext(ctx, "run panicked", "node_id", current, "panic", r)
		}
	}()

	for steps := 0; steps < MaxSteps; steps++ {
		node, ok := g.Node(current)
		if !ok {
			e.record(ctx, flowID, executionID, conversationID, current, schema.EventNodeMissing, nil)
			e.logger.WarnContext(ctx, "node missing, path ends", "node_id", current)
			return nil
		}

		nodeCtx := logging.WithNodeID(ctx, node.ID)
		res := e.executor.Execute(nodeCtx, node, vars, conversationID)

		if res.Err != nil {
			e.record(ctx, flowID, executionID, conversationID, node.ID,
				schema.EventRunFailed, map[string]any{"error": res.Err.Error()})
			e.logger.ErrorContext(nodeCtx, "run failed", "error", res.Err)
			return res.Err
		}

		e.record(ctx, flowID, executionID, conversationID, node.ID, schema.EventNodeExecuted, nil)

		if res.Pause {
			entry := &registry.PausedExecution{
				FlowID:         flowID,
				NodeID:         node.ID,
				ConversationID: conversationID,
				ExecutionID:    executionID,
				Variables:      vars.Snapshot(),
				Waiting:        res.Waiting,
				PausedAt:       time.Now().UTC(),
			}
			if err := e.registry.Pause(ctx, entry); err != nil {
				e.record(ctx, flowID, executionID, conversationID, node.ID,
					schema.EventRunFailed, map[string]any{"error": err.Error()})
				return err
			}
			e.record(ctx, flowID, executionID, conversationID, node.ID,
				schema.EventRunSuspended, map[string]any{"waiting_for": string(res.Waiting)})
			e.logger.InfoContext(nodeCtx, "run suspended", "waiting_for", string(res.Waiting))
			return nil
		}

		if res.End {
			e.record(ctx, flowID, executionID, conversationID, node.ID, schema.EventPathEnded, nil)
			e.logger.InfoContext(nodeCtx, "run completed")
			return nil
		}

		if res.Next != "" {
			e.record(ctx, flowID, executionID, conversationID, node.ID,
				schema.EventConditionHit, map[string]any{"next": res.Next})
			current = res.Next
			continue
		}

		edge := g.NextEdge(node.ID, res.Handle)
		if edge == nil {
			e.record(ctx, flowID, executionID, conversationID, node.ID, schema.EventRunCompleted, nil)
			e.logger.InfoContext(nodeCtx, "run completed")
			return nil
		}
		current = edge.Target
	}

	e.record(ctx, flowID, executionID, conversationID, current,
		schema.EventCapReached, map[string]any{"max_steps": MaxSteps})
	e.logger.WarnContext(ctx, "step cap reached, run stopped", "max_steps", MaxSteps)
	return nil
}

// record writes a journal event, swallowing journal failures.
func (e *Engine) record(ctx context.Context, flowID, executionID, conversationID, nodeID, eventType string, detail map[string]any) {
	if e.journal == nil {
		return
	}
	event := &schema.RunEvent{
		FlowID:         flowID,
		ExecutionID:    executionID,
		ConversationID: conversationID,
		NodeID:         nodeID,
		Type:           eventType,
		Detail:         detail,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.journal.Record(ctx, event); err != nil {
		e.logger.DebugContext(ctx, "journal write failed", "event", eventType, "error", err)
	}
}
