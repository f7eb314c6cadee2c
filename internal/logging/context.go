package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	flowIDKey ctxKey = iota
	conversationIDKey
	executionIDKey
	nodeIDKey
)

// WithFlowID returns a context with the flow ID set.
func WithFlowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, flowIDKey, id)
}

// WithConversationID returns a context with the conversation ID set.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// WithExecutionID returns a context with the execution ID set.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// WithNodeID returns a context with the node ID set.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// FlowID extracts the flow ID from the context, or "" if absent.
func FlowID(ctx context.Context) string {
	v, _ := ctx.Value(flowIDKey).(string)
	return v
}

// ConversationID extracts the conversation ID from the context, or "" if absent.
func ConversationID(ctx context.Context) string {
	v, _ := ctx.Value(conversationIDKey).(string)
	return v
}

// ExecutionID extracts the execution ID from the context, or "" if absent.
func ExecutionID(ctx context.Context) string {
	v, _ := ctx.Value(executionIDKey).(string)
	return v
}

// NodeID extracts the node ID from the context, or "" if absent.
func NodeID(ctx context.Context) string {
	v, _ := ctx.Value(nodeIDKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := FlowID(ctx); v != "" {
		r.AddAttrs(slog.String("flow_id", v))
	}
	if v := ConversationID(ctx); v != "" {
		r.AddAttrs(slog.String("conversation_id", v))
	}
	if v := ExecutionID(ctx); v != "" {
		r.AddAttrs(slog.String("execution_id", v))
	}
	if v := NodeID(ctx); v != "" {
		r.AddAttrs(slog.String("node_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
