package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/chatforge/chatforge/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded
// SQLite fork). A single connection keeps writes serialized, which also
// makes the per-execution journal sequence race-free.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some return rows, so QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Flows ---

func (s *LibSQLStore) CreateFlow(ctx context.Context, f *Flow) error {
	if f.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "flow requires an id")
	}
	status := f.Status
	if status == "" {
		status = FlowStatusDraft
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flows (id, name, description, status, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, nullStr(f.Description), string(status), string(f.Document),
		timeOrNow(f.CreatedAt), timeOrNow(f.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return schema.NewErrorf(schema.ErrCodeConflict, "flow %s already exists", f.ID)
	}
	return err
}

func (s *LibSQLStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	f := &Flow{}
	var description sql.NullString
	var status, document string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, document, created_at, updated_at
		 FROM flows WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &description, &status, &document, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("flow", id)
	}
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	f.Status = FlowStatus(status)
	f.Document = json.RawMessage(document)
	return f, nil
}

func (s *LibSQLStore) UpdateFlow(ctx context.Context, id string, update FlowUpdate) error {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Document != nil {
		sets = append(sets, "document = ?")
		args = append(args, string(update.Document))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE flows SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "flow", id)
}

func (s *LibSQLStore) ListFlows(ctx context.Context, filter FlowFilter) ([]*Flow, error) {
	query := `SELECT id, name, description, status, document, created_at, updated_at FROM flows`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Flow
	for rows.Next() {
		f := &Flow{}
		var description sql.NullString
		var status, document string
		if err := rows.Scan(&f.ID, &f.Name, &description, &status, &document, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Description = description.String
		f.Status = FlowStatus(status)
		f.Document = json.RawMessage(document)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteFlow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "flow", id)
}

// --- Run journal ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *schema.RunEvent) error {
	detail, err := nullableJSON(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_events (sequence, flow_id, execution_id, conversation_id, node_id, type, detail, created_at)
		 SELECT COALESCE(MAX(sequence), 0) + 1, ?, ?, ?, ?, ?, ?, ?
		 FROM run_events WHERE execution_id = ?`,
		event.FlowID, event.ExecutionID, nullStr(event.ConversationID), nullStr(event.NodeID),
		event.Type, detail, timeOrNow(event.CreatedAt), event.ExecutionID,
	)
	return err
}

func (s *LibSQLStore) Events(ctx context.Context, filter EventFilter) ([]*schema.RunEvent, error) {
	query := `SELECT id, sequence, flow_id, execution_id, conversation_id, node_id, type, detail, created_at
	          FROM run_events WHERE execution_id = ? AND sequence > ? ORDER BY sequence`
	args := []any{filter.ExecutionID, filter.Since}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schema.RunEvent
	for rows.Next() {
		e := &schema.RunEvent{}
		var conversationID, nodeID, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Sequence, &e.FlowID, &e.ExecutionID,
			&conversationID, &nodeID, &e.Type, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ConversationID = conversationID.String
		e.NodeID = nodeID.String
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Scheduled jobs ---

func (s *LibSQLStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	seed, err := nullableJSON(job.Seed)
	if err != nil {
		return fmt.Errorf("marshal job seed: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, flow_id, cron_expr, conversation_id, seed, enabled, last_run_at, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.FlowID, job.CronExpr, nullStr(job.ConversationID), seed,
		boolToInt(job.Enabled), nullTime(job.LastRunAt), nullTime(job.NextRunAt),
		timeOrNow(job.CreatedAt), timeOrNow(job.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	job := &ScheduledJob{}
	var conversationID, seed sql.NullString
	var lastRun, nextRun sql.NullTime
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, flow_id, cron_expr, conversation_id, seed, enabled, last_run_at, next_run_at, created_at, updated_at
		 FROM scheduled_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.FlowID, &job.CronExpr, &conversationID, &seed, &enabled,
		&lastRun, &nextRun, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("scheduled job", id)
	}
	if err != nil {
		return nil, err
	}
	job.ConversationID = conversationID.String
	if seed.Valid && seed.String != "" {
		_ = json.Unmarshal([]byte(seed.String), &job.Seed)
	}
	job.Enabled = enabled != 0
	if lastRun.Valid {
		job.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		job.NextRunAt = &nextRun.Time
	}
	return job, nil
}

func (s *LibSQLStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if update.CronExpr != nil {
		sets = append(sets, "cron_expr = ?")
		args = append(args, *update.CronExpr)
	}
	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_jobs SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *LibSQLStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	query := `SELECT id, flow_id, cron_expr, conversation_id, seed, enabled, last_run_at, next_run_at, created_at, updated_at
	          FROM scheduled_jobs WHERE 1=1`
	args := []any{}
	if filter.FlowID != "" {
		query += ` AND flow_id = ?`
		args = append(args, filter.FlowID)
	}
	if filter.OnlyEnabled {
		query += ` AND enabled = 1`
	}
	if filter.DueBefore != nil {
		query += ` AND next_run_at IS NOT NULL AND next_run_at <= ?`
		args = append(args, *filter.DueBefore)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduledJob
	for rows.Next() {
		job := &ScheduledJob{}
		var conversationID, seed sql.NullString
		var lastRun, nextRun sql.NullTime
		var enabled int
		if err := rows.Scan(&job.ID, &job.FlowID, &job.CronExpr, &conversationID, &seed, &enabled,
			&lastRun, &nextRun, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.ConversationID = conversationID.String
		if seed.Valid && seed.String != "" {
			_ = json.Unmarshal([]byte(seed.String), &job.Seed)
		}
		job.Enabled = enabled != 0
		if lastRun.Valid {
			job.LastRunAt = &lastRun.Time
		}
		if nextRun.Valid {
			job.NextRunAt = &nextRun.Time
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

// --- helpers ---

func storeNotFound(kind, id string) error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %s not found", kind, id)
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(kind, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*LibSQLStore)(nil)
