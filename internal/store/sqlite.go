package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xqin1/pipeflow/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			workflow_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			topic TEXT NOT NULL,
			agent_sequence TEXT NOT NULL,
			schedule TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			notification_config TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_run_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_workflow ON sessions(workflow_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS stage_results (
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			output TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, position),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateWorkflow inserts a new workflow definition.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *domain.Workflow) error {
	agents, err := json.Marshal(wf.AgentSequence)
	if err != nil {
		return fmt.Errorf("failed to encode agent sequence: %w", err)
	}
	var notif sql.NullString
	if wf.NotificationConfig != nil {
		data, err := json.Marshal(wf.NotificationConfig)
		if err != nil {
			return fmt.Errorf("failed to encode notification config: %w", err)
		}
		notif = sql.NullString{String: string(data), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (workflow_id, name, topic, agent_sequence, schedule, enabled, notification_config, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.WorkflowID, wf.Name, wf.Topic, string(agents), wf.Schedule, boolToInt(wf.Enabled), notif, wf.CreatedAt)
	return err
}

// GetWorkflow retrieves a workflow by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, name, topic, agent_sequence, schedule, enabled, notification_config, created_at, last_run_at
		 FROM workflows WHERE workflow_id = ?`, workflowID)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// ListWorkflows returns all workflows.
func (s *SQLiteStore) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT workflow_id, name, topic, agent_sequence, schedule, enabled, notification_config, created_at, last_run_at
		 FROM workflows ORDER BY created_at ASC`)
}

// ListEnabledScheduled returns enabled workflows with a non-empty schedule.
func (s *SQLiteStore) ListEnabledScheduled(ctx context.Context) ([]domain.Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT workflow_id, name, topic, agent_sequence, schedule, enabled, notification_config, created_at, last_run_at
		 FROM workflows WHERE enabled = 1 AND schedule IS NOT NULL AND schedule != '' ORDER BY created_at ASC`)
}

func (s *SQLiteStore) queryWorkflows(ctx context.Context, query string, args ...interface{}) ([]domain.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*domain.Workflow, error) {
	var wf domain.Workflow
	var agents string
	var schedule, notif sql.NullString
	var enabled int
	var lastRun sql.NullTime
	err := row.Scan(&wf.WorkflowID, &wf.Name, &wf.Topic, &agents, &schedule, &enabled, &notif, &wf.CreatedAt, &lastRun)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(agents), &wf.AgentSequence); err != nil {
		return nil, fmt.Errorf("failed to decode agent sequence: %w", err)
	}
	if schedule.Valid {
		wf.Schedule = schedule.String
	}
	wf.Enabled = enabled != 0
	if notif.Valid && notif.String != "" {
		var cfg domain.NotificationConfig
		if err := json.Unmarshal([]byte(notif.String), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode notification config: %w", err)
		}
		wf.NotificationConfig = &cfg
	}
	if lastRun.Valid {
		wf.LastRunAt = &lastRun.Time
	}
	return &wf, nil
}

// UpdateWorkflow rewrites a workflow definition.
func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, wf *domain.Workflow) error {
	agents, err := json.Marshal(wf.AgentSequence)
	if err != nil {
		return fmt.Errorf("failed to encode agent sequence: %w", err)
	}
	var notif sql.NullString
	if wf.NotificationConfig != nil {
		data, err := json.Marshal(wf.NotificationConfig)
		if err != nil {
			return fmt.Errorf("failed to encode notification config: %w", err)
		}
		notif = sql.NullString{String: string(data), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE workflows SET name = ?, topic = ?, agent_sequence = ?, schedule = ?, enabled = ?, notification_config = ?
		 WHERE workflow_id = ?`,
		wf.Name, wf.Topic, string(agents), wf.Schedule, boolToInt(wf.Enabled), notif, wf.WorkflowID)
	return err
}

// DeleteWorkflow removes a workflow. Sessions are retained.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE workflow_id = ?`, workflowID)
	return err
}

// TouchWorkflowLastRun records the time of the latest completed run.
func (s *SQLiteStore) TouchWorkflowLastRun(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET last_run_at = ? WHERE workflow_id = ?`, time.Now(), workflowID)
	return err
}

// CreateSession inserts a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, workflow_id, trigger_kind, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, session.WorkflowID, session.Trigger, session.Status, session.StartedAt)
	return err
}

// GetSession retrieves a session and its stage results.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, workflow_id, trigger_kind, status, started_at, ended_at, error
		 FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results, err := s.getStageResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.StageResults = results
	return session, nil
}

// GetInFlightSession returns the queued or running session for a workflow.
func (s *SQLiteStore) GetInFlightSession(ctx context.Context, workflowID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, workflow_id, trigger_kind, status, started_at, ended_at, error
		 FROM sessions WHERE workflow_id = ? AND status IN (?, ?) LIMIT 1`,
		workflowID, domain.SessionStatusQueued, domain.SessionStatusRunning)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all sessions for a workflow, most recent first,
// including their stage results.
func (s *SQLiteStore) ListSessions(ctx context.Context, workflowID string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, workflow_id, trigger_kind, status, started_at, ended_at, error
		 FROM sessions WHERE workflow_id = ? ORDER BY started_at DESC, session_id DESC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sessions {
		results, err := s.getStageResults(ctx, sessions[i].SessionID)
		if err != nil {
			return nil, err
		}
		sessions[i].StageResults = results
	}
	return sessions, nil
}

// ListInFlightSessions returns every queued or running session.
func (s *SQLiteStore) ListInFlightSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, workflow_id, trigger_kind, status, started_at, ended_at, error
		 FROM sessions WHERE status IN (?, ?)`,
		domain.SessionStatusQueued, domain.SessionStatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var endedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&session.SessionID, &session.WorkflowID, &session.Trigger, &session.Status,
		&session.StartedAt, &endedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	if errMsg.Valid {
		session.Error = errMsg.String
	}
	return &session, nil
}

// UpdateSessionStatus updates the status of a session.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_id = ?`, status, sessionID)
	return err
}

// CompleteSession sets a terminal status, the error and ended_at.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string) error {
	var e sql.NullString
	if errMsg != "" {
		e = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ?, error = ? WHERE session_id = ?`,
		status, time.Now(), e, sessionID)
	return err
}

// AppendStageResult appends a stage result at the next position for the session.
func (s *SQLiteStore) AppendStageResult(ctx context.Context, sessionID string, result *domain.StageResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_results (session_id, position, agent_id, output, error, started_at, ended_at)
		 SELECT ?, COALESCE(MAX(position), -1) + 1, ?, ?, ?, ?, ? FROM stage_results WHERE session_id = ?`,
		sessionID, result.AgentID, result.Output, result.Error, result.StartedAt, result.EndedAt, sessionID)
	return err
}

func (s *SQLiteStore) getStageResults(ctx context.Context, sessionID string) ([]domain.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, output, error, started_at, ended_at
		 FROM stage_results WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.StageResult
	for rows.Next() {
		var r domain.StageResult
		var output, errMsg sql.NullString
		if err := rows.Scan(&r.AgentID, &output, &errMsg, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		if output.Valid {
			r.Output = output.String
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
