// Package store provides durable persistence for workflows and sessions.
package store

import (
	"context"

	"github.com/xqin1/pipeflow/internal/domain"
)

// Store is the persistence interface for the workflow engine. Lookup methods
// return (nil, nil) when the record does not exist.
type Store interface {
	// Workflows
	CreateWorkflow(ctx context.Context, wf *domain.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error)
	ListWorkflows(ctx context.Context) ([]domain.Workflow, error)
	// ListEnabledScheduled returns enabled workflows with a non-empty schedule.
	ListEnabledScheduled(ctx context.Context) ([]domain.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *domain.Workflow) error
	// DeleteWorkflow removes the workflow definition. Sessions referencing it
	// are retained as history.
	DeleteWorkflow(ctx context.Context, workflowID string) error
	TouchWorkflowLastRun(ctx context.Context, workflowID string) error

	// Sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// GetInFlightSession returns the queued or running session for a
	// workflow, or nil if there is none.
	GetInFlightSession(ctx context.Context, workflowID string) (*domain.Session, error)
	// ListSessions returns all sessions for a workflow, most recent first.
	ListSessions(ctx context.Context, workflowID string) ([]domain.Session, error)
	// ListInFlightSessions returns every queued or running session.
	ListInFlightSessions(ctx context.Context) ([]domain.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error
	// CompleteSession sets a terminal status, the session error (may be
	// empty) and ended_at.
	CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string) error
	AppendStageResult(ctx context.Context, sessionID string, result *domain.StageResult) error

	Close() error
}
