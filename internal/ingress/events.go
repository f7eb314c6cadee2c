package ingress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatforge/chatforge/internal/store"
	"github.com/chatforge/chatforge/internal/trigger"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// channelEvent is the wire shape of an inbound channel event.
type channelEvent struct {
	ConversationID string         `json:"conversationId"`
	Type           string         `json:"type"`
	Text           string         `json:"text,omitempty"`
	ButtonID       string         `json:"buttonId,omitempty"`
	ButtonTitle    string         `json:"buttonTitle,omitempty"`
	ListRowID      string         `json:"listRowId,omitempty"`
	ListRowTitle   string         `json:"listRowTitle,omitempty"`
	FormData       map[string]any `json:"formData,omitempty"`
	Latitude       float64        `json:"latitude,omitempty"`
	Longitude      float64        `json:"longitude,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// handleChannelEvent accepts one inbound event and dispatches it
// asynchronously. The provider gets a 202 immediately; a slow flow (delay
// nodes, http calls) must not hold the delivery connection open.
func (s *Server) handleChannelEvent(w http.ResponseWriter, r *http.Request) {
	var ev channelEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "invalid event payload").WithCause(err))
		return
	}
	if ev.ConversationID == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "conversationId is required"))
		return
	}

	inbound := &trigger.InboundEvent{
		ConversationID: ev.ConversationID,
		Kind:           ev.Type,
		Text:           ev.Text,
		ButtonID:       ev.ButtonID,
		ButtonTitle:    ev.ButtonTitle,
		ListRowID:      ev.ListRowID,
		ListRowTitle:   ev.ListRowTitle,
		FormData:       ev.FormData,
		Latitude:       ev.Latitude,
		Longitude:      ev.Longitude,
		Raw:            ev.Raw,
	}

	// Detach from the request: the run outlives the HTTP exchange.
	runCtx := context.WithoutCancel(r.Context())
	err := s.pool.Go(runCtx, func(ctx context.Context) error {
		if err := s.router.Handle(ctx, inbound); err != nil {
			s.logger.Error("event dispatch failed",
				"conversation_id", inbound.ConversationID, "error", err)
		}
		return nil
	})
	if err != nil {
		writeError(w, schema.NewError(schema.ErrCodeExecution, "dispatch unavailable").WithCause(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRunEvents returns the journal of one execution in sequence order.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.Events(r.Context(), store.EventFilter{
		ExecutionID: chi.URLParam(r, "executionID"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*schema.RunEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleWebhook catches an external callback addressed to one
// webhook-trigger node and starts the flow there. The request is exposed
// to the flow under the "webhook" namespace: method, flattened body,
// query parameters, and headers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	nodeID := chi.URLParam(r, "nodeID")

	seed := map[string]any{
		"webhook.method": r.Method,
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil && len(body) > 0 {
		var parsed any
		if json.Unmarshal(body, &parsed) == nil {
			tmp := variables.New()
			tmp.Flatten("webhook.body", parsed)
			for k, v := range tmp.All() {
				seed[k] = v
			}
		} else {
			seed["webhook.body"] = string(body)
		}
	}

	for k, vals := range r.URL.Query() {
		if len(vals) > 0 {
			seed["webhook.query."+k] = vals[0]
		}
	}
	for k, vals := range r.Header {
		if len(vals) > 0 {
			seed["webhook.headers."+strings.ToLower(k)] = vals[0]
		}
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		conversationID = "hook:" + uuid.NewString()
	}

	runCtx := context.WithoutCancel(r.Context())
	err = s.pool.Go(runCtx, func(ctx context.Context) error {
		if err := s.engine.StartAtNode(ctx, flowID, nodeID, conversationID, seed); err != nil {
			s.logger.Error("webhook run failed",
				"flow_id", flowID, "node_id", nodeID, "error", err)
		}
		return nil
	})
	if err != nil {
		writeError(w, schema.NewError(schema.ErrCodeExecution, "dispatch unavailable").WithCause(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "accepted",
		"conversationId": conversationID,
	})
}
