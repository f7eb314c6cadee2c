package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chatforge/chatforge/pkg/schema"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	flows     map[string]*Flow
	events    map[string][]*schema.RunEvent // by execution id
	jobs      map[string]*ScheduledJob
	nextEvent int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows:  make(map[string]*Flow),
		events: make(map[string][]*schema.RunEvent),
		jobs:   make(map[string]*ScheduledJob),
	}
}

func (s *MemoryStore) CreateFlow(ctx context.Context, f *Flow) error {
	if f.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "flow requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.flows[f.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "flow %s already exists", f.ID)
	}
	cp := *f
	if cp.Status == "" {
		cp.Status = FlowStatusDraft
	}
	cp.CreatedAt = timeOrNow(cp.CreatedAt)
	cp.UpdatedAt = timeOrNow(cp.UpdatedAt)
	cp.Document = append(json.RawMessage(nil), f.Document...)
	s.flows[f.ID] = &cp
	return nil
}

func (s *MemoryStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, storeNotFound("flow", id)
	}
	cp := *f
	cp.Document = append(json.RawMessage(nil), f.Document...)
	return &cp, nil
}

func (s *MemoryStore) UpdateFlow(ctx context.Context, id string, update FlowUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return storeNotFound("flow", id)
	}
	if update.Name != nil {
		f.Name = *update.Name
	}
	if update.Description != nil {
		f.Description = *update.Description
	}
	if update.Status != nil {
		f.Status = *update.Status
	}
	if update.Document != nil {
		f.Document = append(json.RawMessage(nil), update.Document...)
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListFlows(ctx context.Context, filter FlowFilter) ([]*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Flow
	for _, f := range s.flows {
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		cp := *f
		cp.Document = append(json.RawMessage(nil), f.Document...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) DeleteFlow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[id]; !ok {
		return storeNotFound("flow", id)
	}
	delete(s.flows, id)
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *schema.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.nextEvent++
	cp.ID = s.nextEvent
	cp.Sequence = int64(len(s.events[event.ExecutionID])) + 1
	cp.CreatedAt = timeOrNow(cp.CreatedAt)
	s.events[event.ExecutionID] = append(s.events[event.ExecutionID], &cp)
	return nil
}

func (s *MemoryStore) Events(ctx context.Context, filter EventFilter) ([]*schema.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*schema.RunEvent
	for _, e := range s.events[filter.ExecutionID] {
		if e.Sequence <= filter.Since {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled job %s already exists", job.ID)
	}
	cp := *job
	cp.CreatedAt = timeOrNow(cp.CreatedAt)
	cp.UpdatedAt = timeOrNow(cp.UpdatedAt)
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, storeNotFound("scheduled job", id)
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return storeNotFound("scheduled job", id)
	}
	if update.CronExpr != nil {
		job.CronExpr = *update.CronExpr
	}
	if update.Enabled != nil {
		job.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		t := *update.LastRunAt
		job.LastRunAt = &t
	}
	if update.NextRunAt != nil {
		t := *update.NextRunAt
		job.NextRunAt = &t
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ScheduledJob
	for _, job := range s.jobs {
		if filter.FlowID != "" && job.FlowID != filter.FlowID {
			continue
		}
		if filter.OnlyEnabled && !job.Enabled {
			continue
		}
		if filter.DueBefore != nil && (job.NextRunAt == nil || job.NextRunAt.After(*filter.DueBefore)) {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) DeleteScheduledJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return storeNotFound("scheduled job", id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Vacuum(ctx context.Context) error  { return nil }
func (s *MemoryStore) Close() error                      { return nil }

var _ Store = (*MemoryStore)(nil)
