// Package scheduler starts flows on cron schedules, for recurring
// campaigns and reminders not driven by an inbound message.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatforge/chatforge/internal/store"
)

// FlowRunner is the interface the scheduler uses to start runs.
// Satisfied by the engine (avoids an import cycle).
type FlowRunner interface {
	Start(ctx context.Context, flowID, conversationID string, seed map[string]any) error
}

// Scheduler polls the store for due scheduled jobs and runs them.
type Scheduler struct {
	store  store.Store
	runner FlowRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
	wg         sync.WaitGroup
}

// New creates a Scheduler. Cron expressions use the standard five fields.
func New(s store.Store, runner FlowRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled job that is due.
func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{OnlyEnabled: true})
	if err != nil {
		s.logger.Error("failed to list scheduled jobs", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if job.NextRunAt == nil || !job.NextRunAt.After(now) {
			if !s.tryAcquire(job.ID) {
				continue // already running (dedup)
			}
			// Each job runs on its own goroutine: a flow with a long delay
			// node must not stall the other due jobs or the next tick. The
			// inflight set keeps later ticks from double-firing the job
			// while it runs.
			s.wg.Add(1)
			go func(job *store.ScheduledJob) {
				defer s.wg.Done()
				defer s.release(job.ID)
				if err := s.runJob(ctx, job, now); err != nil {
					s.logger.Error("failed to run scheduled job",
						slog.String("job_id", job.ID),
						slog.String("error", err.Error()),
					)
				}
			}(job)
		}
	}
}

// runJob starts the job's flow and advances its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *store.ScheduledJob, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("flow_id", job.FlowID),
	)

	conversationID := job.ConversationID
	if conversationID == "" {
		conversationID = "scheduled:" + job.ID
	}

	seed := make(map[string]any, len(job.Seed)+1)
	for k, v := range job.Seed {
		seed[k] = v
	}
	seed["schedule.job_id"] = job.ID

	if err := s.runner.Start(ctx, job.FlowID, conversationID, seed); err != nil {
		s.logger.Error("scheduled run failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	nextRun, err := s.NextRun(job.CronExpr, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}
	return s.store.UpdateScheduledJob(ctx, job.ID, store.ScheduledJobUpdate{
		LastRunAt: &now,
		NextRunAt: &nextRun,
	})
}

// tryAcquire marks the job in-flight unless it already is.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) release(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// NextRun computes the next run time for a cron expression.
func (s *Scheduler) NextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.wg.Wait()
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
