// Package ingress is the HTTP edge: channel event intake, inbound
// webhooks that trigger flows, and the flow management API.
package ingress

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatforge/chatforge/internal/engine"
	"github.com/chatforge/chatforge/internal/store"
	"github.com/chatforge/chatforge/internal/trigger"
	"github.com/chatforge/chatforge/internal/validation"
	"github.com/chatforge/chatforge/pkg/schema"
)

// Server wires the HTTP surface.
type Server struct {
	router    *trigger.Router
	engine    *engine.Engine
	store     store.Store
	cache     *store.FlowCache
	validator *validation.DocumentValidator
	logger    *slog.Logger
	pool      *engine.DispatchPool
}

// NewServer creates a Server.
func NewServer(router *trigger.Router, eng *engine.Engine, st store.Store, cache *store.FlowCache, validator *validation.DocumentValidator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		router:    router,
		engine:    eng,
		store:     st,
		cache:     cache,
		validator: validator,
		logger:    logger,
		pool:      engine.NewDispatchPool(64),
	}
}

// Close drains in-flight flow runs. Call after the HTTP listener has
// stopped accepting requests.
func (s *Server) Close() {
	s.pool.Close()
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Post("/channel/events", s.handleChannelEvent)
	r.Post("/hooks/{flowID}/{nodeID}", s.handleWebhook)

	r.Get("/runs/{executionID}/events", s.handleRunEvents)

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.handleListFlows)
		r.Post("/", s.handleCreateFlow)
		r.Get("/{flowID}", s.handleGetFlow)
		r.Get("/{flowID}/diagram", s.handleFlowDiagram)
		r.Put("/{flowID}", s.handleUpdateFlow)
		r.Delete("/{flowID}", s.handleDeleteFlow)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		writeJSON(w, statusForCode(fe.Code), map[string]any{
			"error":   fe.Message,
			"code":    fe.Code,
			"details": fe.Details,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": err.Error(),
		"code":  schema.ErrCodeExecution,
	})
}

func statusForCode(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeInterpolation:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
