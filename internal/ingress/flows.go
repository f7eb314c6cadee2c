package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatforge/chatforge/internal/diagram"
	"github.com/chatforge/chatforge/internal/flow"
	"github.com/chatforge/chatforge/internal/store"
	"github.com/chatforge/chatforge/pkg/schema"
)

// flowRequest is the wire shape for creating or updating a flow.
type flowRequest struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      store.FlowStatus `json:"status,omitempty"`
	Document    json.RawMessage  `json:"document"`
}

// validateDocument normalizes and validates an incoming document, and
// returns warnings worth surfacing to the editor.
func (s *Server) validateDocument(raw json.RawMessage) (*schema.ValidationResult, error) {
	doc, err := flow.Normalize(raw)
	if err != nil {
		return nil, err
	}
	result := s.validator.Validate(doc)
	if !result.Valid() {
		return result, result.ToError()
	}
	return result, nil
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var req flowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "invalid flow payload").WithCause(err))
		return
	}
	if len(req.Document) == 0 {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "document is required"))
		return
	}

	result, err := s.validateDocument(req.Document)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	f := &store.Flow{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Document:    req.Document,
	}
	if err := s.store.CreateFlow(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}
	s.cache.Invalidate(f.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"flow":     f,
		"warnings": result.Warnings,
	})
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFlow(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFlowDiagram(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cache.Flow(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(diagram.RenderMermaid(diagram.Build(doc))))
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	filter := store.FlowFilter{Status: store.FlowStatus(r.URL.Query().Get("status"))}
	flows, err := s.store.ListFlows(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if flows == nil {
		flows = []*store.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")

	var req flowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "invalid flow payload").WithCause(err))
		return
	}

	update := store.FlowUpdate{}
	var warnings []schema.ValidationIssue
	if req.Name != "" {
		update.Name = &req.Name
	}
	if req.Description != "" {
		update.Description = &req.Description
	}
	if req.Status != "" {
		update.Status = &req.Status
	}
	if len(req.Document) > 0 {
		result, err := s.validateDocument(req.Document)
		if err != nil {
			writeError(w, err)
			return
		}
		warnings = result.Warnings
		update.Document = req.Document
	}

	if err := s.store.UpdateFlow(r.Context(), flowID, update); err != nil {
		writeError(w, err)
		return
	}
	s.cache.Invalidate(flowID)

	f, err := s.store.GetFlow(r.Context(), flowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flow":     f,
		"warnings": warnings,
	})
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	if err := s.store.DeleteFlow(r.Context(), flowID); err != nil {
		writeError(w, err)
		return
	}
	s.cache.Invalidate(flowID)
	w.WriteHeader(http.StatusNoContent)
}
