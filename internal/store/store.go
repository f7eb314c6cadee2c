package store

import (
	"context"

	"github.com/chatforge/chatforge/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Flows
	CreateFlow(ctx context.Context, f *Flow) error
	GetFlow(ctx context.Context, id string) (*Flow, error)
	UpdateFlow(ctx context.Context, id string, update FlowUpdate) error
	ListFlows(ctx context.Context, filter FlowFilter) ([]*Flow, error)
	DeleteFlow(ctx context.Context, id string) error

	// Run journal (append-only)
	AppendEvent(ctx context.Context, event *schema.RunEvent) error
	Events(ctx context.Context, filter EventFilter) ([]*schema.RunEvent, error)

	// Scheduled jobs
	CreateScheduledJob(ctx context.Context, job *ScheduledJob) error
	GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error)
	UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error
	ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error)
	DeleteScheduledJob(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
