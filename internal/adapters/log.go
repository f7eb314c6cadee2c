package adapters

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatforge/chatforge/pkg/schema"
)

// LogMessenger is the default Messenger when no channel integration is
// configured. Every send succeeds and is written to the structured log,
// which keeps local development and flow authoring usable without
// provider credentials.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger creates a log-only messenger.
func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMessenger{logger: logger.With("adapter", "log-messenger")}
}

func (m *LogMessenger) send(ctx context.Context, conversationID, kind string, attrs ...any) Result {
	messageID := uuid.NewString()
	all := append([]any{"conversation_id", conversationID, "message_id", messageID}, attrs...)
	m.logger.InfoContext(ctx, "outbound "+kind, all...)
	return OK(map[string]any{"message_id": messageID})
}

func (m *LogMessenger) SendText(ctx context.Context, conversationID, text string) Result {
	return m.send(ctx, conversationID, "text", "text", text)
}

func (m *LogMessenger) SendMedia(ctx context.Context, conversationID string, cfg schema.MediaConfig) Result {
	return m.send(ctx, conversationID, "media", "media_type", cfg.MediaType, "url", cfg.URL)
}

func (m *LogMessenger) SendTemplate(ctx context.Context, conversationID string, cfg schema.TemplateConfig) Result {
	return m.send(ctx, conversationID, "template", "template", cfg.Name, "language", cfg.Language)
}

func (m *LogMessenger) SendCTA(ctx context.Context, conversationID string, cfg schema.CTAConfig) Result {
	return m.send(ctx, conversationID, "cta", "text", cfg.Text, "url", cfg.URL)
}

func (m *LogMessenger) SendLocation(ctx context.Context, conversationID string, cfg schema.LocationConfig) Result {
	return m.send(ctx, conversationID, "location", "latitude", cfg.Latitude, "longitude", cfg.Longitude)
}

func (m *LogMessenger) SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) Result {
	return m.send(ctx, conversationID, "buttons", "text", cfg.Text, "buttons", len(cfg.Buttons))
}

func (m *LogMessenger) SendList(ctx context.Context, conversationID string, cfg schema.ListConfig) Result {
	return m.send(ctx, conversationID, "list", "text", cfg.Text, "sections", len(cfg.Sections))
}

func (m *LogMessenger) SendFlowForm(ctx context.Context, conversationID string, cfg schema.FlowFormConfig) Result {
	return m.send(ctx, conversationID, "flow form", "flow_id", cfg.FlowID)
}

func (m *LogMessenger) RequestLocation(ctx context.Context, conversationID, text string) Result {
	return m.send(ctx, conversationID, "location request", "text", text)
}

var _ Messenger = (*LogMessenger)(nil)
