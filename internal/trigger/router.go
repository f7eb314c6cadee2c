// Package trigger routes inbound channel events: a conversation waiting
// on an interactive node is resumed, everything else is matched against
// keyword triggers to start new runs.
package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/chatforge/chatforge/internal/engine"
	"github.com/chatforge/chatforge/internal/registry"
	"github.com/chatforge/chatforge/pkg/schema"
)

// InboundEvent is one normalized event from the chat channel.
type InboundEvent struct {
	ConversationID string
	// Kind is one of "text", "button", "list", "flow", "location".
	Kind string

	Text string

	ButtonID    string
	ButtonTitle string

	ListRowID    string
	ListRowTitle string

	FormData map[string]any

	Latitude  float64
	Longitude float64

	// Raw carries the provider payload for flows that want the
	// unprocessed event.
	Raw map[string]any
}

// FlowLister returns the flow documents eligible for keyword triggering.
type FlowLister interface {
	ActiveFlows(ctx context.Context) ([]*schema.FlowDocument, error)
}

// Router dispatches inbound events. Resume always wins over triggering: a
// waiting conversation consumes the event even when its text would match
// a keyword.
type Router struct {
	engine *engine.Engine
	flows  FlowLister
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(eng *engine.Engine, flows FlowLister, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{engine: eng, flows: flows, logger: logger}
}

// Handle processes one inbound event to completion of the run segment it
// causes. Callers that must not block run it in a goroutine.
func (r *Router) Handle(ctx context.Context, ev *InboundEvent) error {
	if ev == nil || ev.ConversationID == "" {
		return schema.NewError(schema.ErrCodeValidation, "inbound event requires a conversation id")
	}

	resumed, err := r.engine.Resume(ctx, ev.ConversationID, func(entry *registry.PausedExecution) map[string]any {
		return ResumePayload(entry, ev)
	})
	if err != nil {
		return err
	}
	if resumed {
		return nil
	}

	return r.matchTriggers(ctx, ev)
}

func (r *Router) matchTriggers(ctx context.Context, ev *InboundEvent) error {
	if ev.Kind != "" && ev.Kind != "text" {
		// Button taps and form replies without a waiting conversation are
		// stale, there is nothing to trigger.
		r.logger.DebugContext(ctx, "non-text event with no waiting conversation, dropped",
			"conversation_id", ev.ConversationID, "kind", ev.Kind)
		return nil
	}

	flows, err := r.flows.ActiveFlows(ctx)
	if err != nil {
		return err
	}

	for _, doc := range flows {
		for i := range doc.Nodes {
			node := &doc.Nodes[i]
			if node.Type != schema.NodeTypeTrigger {
				continue
			}
			cfg, err := decodeTrigger(node)
			if err != nil {
				r.logger.WarnContext(ctx, "trigger config invalid, skipped",
					"flow_id", doc.ID, "node_id", node.ID, "error", err)
				continue
			}
			if !Matches(cfg, ev.Text) {
				continue
			}

			r.logger.InfoContext(ctx, "keyword trigger fired",
				"flow_id", doc.ID, "node_id", node.ID,
				"conversation_id", ev.ConversationID)
			return r.engine.StartAtNode(ctx, doc.ID, node.ID, ev.ConversationID, seedVariables(ev))
		}
	}

	r.logger.DebugContext(ctx, "no trigger matched", "conversation_id", ev.ConversationID)
	return nil
}

func decodeTrigger(node *schema.Node) (*schema.TriggerConfig, error) {
	var cfg schema.TriggerConfig
	if len(node.Config) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Matches reports whether a message text fires a keyword trigger.
// Matching is case-insensitive on trimmed text.
func Matches(cfg *schema.TriggerConfig, text string) bool {
	if cfg.Match == "any" {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return false
	}
	for _, kw := range cfg.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		switch cfg.Match {
		case "exact":
			if msg == k {
				return true
			}
		case "starts-with":
			if strings.HasPrefix(msg, k) {
				return true
			}
		default: // contains
			if strings.Contains(msg, k) {
				return true
			}
		}
	}
	return false
}

// seedVariables builds the initial variable set for a keyword-triggered
// run.
func seedVariables(ev *InboundEvent) map[string]any {
	seed := map[string]any{
		"conversation.id": ev.ConversationID,
		"message.text":    ev.Text,
		"contact.phone":   ev.ConversationID,
	}
	if len(ev.Raw) > 0 {
		seed["message.raw"] = ev.Raw
	}
	return seed
}

// ResumePayload maps an inbound event onto the variables the paused node
// contributes on resume. Keys live under the paused node's ID namespace;
// a generic "<node>.reply" always carries the human-readable answer.
// Flow form fields are additionally aliased under "flow_response." for
// documents authored against the legacy naming.
func ResumePayload(entry *registry.PausedExecution, ev *InboundEvent) map[string]any {
	n := entry.NodeID
	payload := map[string]any{}

	switch entry.Waiting {
	case schema.WaitButton:
		id, title := ev.ButtonID, ev.ButtonTitle
		if id == "" && title == "" {
			// A typed answer to a button prompt still resumes the run.
			title = ev.Text
		}
		payload[n+".buttonId"] = id
		payload[n+".buttonTitle"] = title
		payload[n+".reply"] = firstNonEmpty(title, id, ev.Text)

	case schema.WaitList:
		payload[n+".selectionId"] = ev.ListRowID
		payload[n+".selectionTitle"] = ev.ListRowTitle
		payload[n+".reply"] = firstNonEmpty(ev.ListRowTitle, ev.ListRowID, ev.Text)

	case schema.WaitFlow:
		for k, v := range ev.FormData {
			payload[n+"."+k] = v
			payload["flow_response."+k] = v
		}
		payload[n+".reply"] = ev.Text

	case schema.WaitLocation:
		payload[n+".latitude"] = ev.Latitude
		payload[n+".longitude"] = ev.Longitude
		payload[n+".reply"] = ev.Text

	default: // WaitMessage and anything future
		payload[n+".reply"] = ev.Text
		payload[n+".answer"] = ev.Text
	}

	return payload
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
