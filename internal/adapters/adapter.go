// Package adapters defines the outbound side-effect ports of the engine:
// messaging, AI completion, email, spreadsheets, and external database
// queries. The executor calls these through interfaces so channel
// integrations can be swapped without touching node handlers, and so
// tests can record sends instead of hitting a live API.
package adapters

import (
	"context"

	"github.com/chatforge/chatforge/pkg/schema"
)

// Result is the outcome of one adapter call. Failures are soft: the
// executor records them into variables and the run continues (or, for
// interactive nodes, declines to suspend), it never aborts.
type Result struct {
	Success bool
	// Payload carries provider data worth exposing to the flow, such as
	// the provider message id.
	Payload map[string]any
	Err     error
}

// OK builds a successful result.
func OK(payload map[string]any) Result {
	return Result{Success: true, Payload: payload}
}

// Fail builds a failed result.
func Fail(err error) Result {
	return Result{Success: false, Err: err}
}

// Messenger sends outbound messages on the chat channel. One method per
// message shape the channel supports.
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) Result
	SendMedia(ctx context.Context, conversationID string, cfg schema.MediaConfig) Result
	SendTemplate(ctx context.Context, conversationID string, cfg schema.TemplateConfig) Result
	SendCTA(ctx context.Context, conversationID string, cfg schema.CTAConfig) Result
	SendLocation(ctx context.Context, conversationID string, cfg schema.LocationConfig) Result
	SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) Result
	SendList(ctx context.Context, conversationID string, cfg schema.ListConfig) Result
	SendFlowForm(ctx context.Context, conversationID string, cfg schema.FlowFormConfig) Result
	RequestLocation(ctx context.Context, conversationID, text string) Result
}

// AIClient produces a completion for a prompt.
type AIClient interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// EmailSender delivers an email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SheetClient appends a row to a spreadsheet.
type SheetClient interface {
	AppendRow(ctx context.Context, spreadsheetID, cellRange string, values []string) error
}

// DatabaseClient runs a parameterized query against an external database.
type DatabaseClient interface {
	Query(ctx context.Context, query string, params []string) (any, error)
}

// Registry bundles the configured adapters for injection into the
// executor. Any field may be nil; the executor reports a soft failure
// when a node needs an adapter that is not wired.
type Registry struct {
	Messenger Messenger
	AI        AIClient
	Email     EmailSender
	Sheets    SheetClient
	Database  DatabaseClient
}
