// Package store persists flow definitions, the run event journal, and
// scheduled trigger jobs.
package store

import (
	"encoding/json"
	"time"
)

// FlowStatus is the publication state of a flow definition. Only active
// flows are eligible for keyword and scheduled triggering.
type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"
	FlowStatusActive   FlowStatus = "active"
	FlowStatusArchived FlowStatus = "archived"
)

// Flow is a persisted flow definition. Document holds the raw node/edge
// graph exactly as the editor saved it; normalization happens at load
// time so legacy documents keep working without a data migration.
type Flow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      FlowStatus      `json:"status"`
	Document    json.RawMessage `json:"document"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FlowUpdate carries a partial update; nil fields are left unchanged.
type FlowUpdate struct {
	Name        *string
	Description *string
	Status      *FlowStatus
	Document    json.RawMessage
}

// FlowFilter narrows ListFlows.
type FlowFilter struct {
	Status FlowStatus
}

// EventFilter narrows journal reads.
type EventFilter struct {
	ExecutionID string
	Since       int64
	Limit       int
}

// ScheduledJob starts a flow on a cron schedule, for recurring campaigns
// and reminders that are not driven by an inbound message.
type ScheduledJob struct {
	ID             string         `json:"id"`
	FlowID         string         `json:"flow_id"`
	CronExpr       string         `json:"cron_expr"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Seed           map[string]any `json:"seed,omitempty"`
	Enabled        bool           `json:"enabled"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ScheduledJobUpdate carries a partial update; nil fields are left unchanged.
type ScheduledJobUpdate struct {
	CronExpr  *string
	Enabled   *bool
	LastRunAt *time.Time
	NextRunAt *time.Time
}

// ScheduledJobFilter narrows ListScheduledJobs.
type ScheduledJobFilter struct {
	FlowID      string
	OnlyEnabled bool
	DueBefore   *time.Time
}
