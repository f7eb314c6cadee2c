package schema

import "time"

// RunEvent is one entry of a run's journal. Sequence is assigned by the
// journal store, monotonic per execution.
type RunEvent struct {
	ID             int64          `json:"id,omitempty"`
	Sequence       int64          `json:"sequence"`
	FlowID         string         `json:"flow_id"`
	ExecutionID    string         `json:"execution_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	NodeID         string         `json:"node_id,omitempty"`
	Type           string         `json:"type"`
	Detail         map[string]any `json:"detail,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Event type constants for the run journal.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
	EventRunSuspended = "run_suspended"
	EventRunResumed   = "run_resumed"
	EventCapReached   = "cap_reached"

	EventNodeExecuted  = "node_executed"
	EventNodeFailed    = "node_failed"
	EventNodeMissing   = "node_missing"
	EventPathEnded     = "path_ended"
	EventConditionHit  = "condition_hit"
	EventTriggerFired  = "trigger_fired"
	EventWebhookCaught = "webhook_caught"
)

// RunStatus represents the lifecycle state of one execution.
type RunStatus string

const (
	RunStatusActive    RunStatus = "active"
	RunStatusSuspended RunStatus = "suspended"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)
