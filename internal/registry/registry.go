// Package registry tracks conversations whose flow run is suspended at an
// interactive node, waiting for the contact's next inbound event. Entries
// are keyed by conversation id: a conversation can wait on at most one
// node at a time, and pausing again overwrites the previous wait.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/chatforge/chatforge/pkg/schema"
)

// PausedExecution is the persisted snapshot of a suspended run. It carries
// everything needed to resume: which flow, which node the run is parked
// on, and the full variable state at the moment of suspension.
type PausedExecution struct {
	FlowID         string          `json:"flowId"`
	NodeID         string          `json:"nodeId"`
	ConversationID string          `json:"conversationId"`
	ExecutionID    string          `json:"executionId"`
	Variables      map[string]any  `json:"variables"`
	Waiting        schema.WaitKind `json:"waitingFor"`
	PausedAt       time.Time       `json:"pausedAt"`
}

// Registry stores paused executions between the outbound interactive send
// and the inbound reply that resumes it.
type Registry interface {
	// Pause records a suspended run, replacing any prior entry for the
	// same conversation.
	Pause(ctx context.Context, entry *PausedExecution) error
	// Lookup returns the paused entry for a conversation, or nil when
	// the conversation is not waiting on anything.
	Lookup(ctx context.Context, conversationID string) (*PausedExecution, error)
	// Remove deletes the entry for a conversation. Removing an absent
	// entry is not an error.
	Remove(ctx context.Context, conversationID string) error
}

// MemoryRegistry is the default single-process Registry. Entries do not
// survive a restart; deployments that need durability or multi-instance
// routing use the redis-backed registry instead.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]*PausedExecution
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]*PausedExecution),
	}
}

func (r *MemoryRegistry) Pause(ctx context.Context, entry *PausedExecution) error {
	if entry == nil || entry.ConversationID == "" {
		return schema.NewError(schema.ErrCodeRegistry, "paused execution requires a conversation id")
	}
	if entry.PausedAt.IsZero() {
		entry.PausedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ConversationID] = entry
	return nil
}

func (r *MemoryRegistry) Lookup(ctx context.Context, conversationID string) (*PausedExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[conversationID]
	if !ok {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored entry.
	cp := *entry
	cp.Variables = make(map[string]any, len(entry.Variables))
	for k, v := range entry.Variables {
		cp.Variables[k] = v
	}
	return &cp, nil
}

func (r *MemoryRegistry) Remove(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, conversationID)
	return nil
}

// Len reports the number of waiting conversations.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var _ Registry = (*MemoryRegistry)(nil)
