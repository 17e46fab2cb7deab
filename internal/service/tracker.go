package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
)

// StartSession admits a new session for the workflow and launches the
// pipeline in the background. Returns (nil, nil) if the workflow does not
// exist, and a ConflictError if the workflow already has an in-flight
// session. query overrides the Research agent's default prompt and is only
// meaningful for manual triggers.
func (s *Service) StartSession(ctx context.Context, workflowID string, trigger domain.Trigger, query string) (*domain.Session, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if wf == nil {
		return nil, nil
	}

	caps, err := s.resolver.Resolve(wf.AgentSequence)
	if err != nil {
		return nil, domain.NewValidationError("invalid agent sequence: %v", err)
	}

	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	inFlight, err := s.store.GetInFlightSession(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to check in-flight session: %w", err)
	}
	if inFlight != nil {
		return nil, &domain.ConflictError{WorkflowID: workflowID, SessionID: inFlight.SessionID}
	}

	session := &domain.Session{
		SessionID:  "sess_" + uuid.New().String()[:8],
		WorkflowID: workflowID,
		Trigger:    trigger,
		Status:     domain.SessionStatusQueued,
		StartedAt:  time.Now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("INFO: session %s queued for workflow %s (trigger=%s)", session.SessionID, workflowID, trigger)
	s.publish(hub.Event{
		Type:       domain.EventTypeSessionQueued,
		SessionID:  session.SessionID,
		WorkflowID: workflowID,
		Status:     domain.SessionStatusQueued,
	})

	s.workers.Add(1)
	go s.runPipeline(wf, session, caps, query)

	return session, nil
}

// GetSession retrieves a session; (nil, nil) if it does not exist.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions returns a workflow's sessions, most recent first.
func (s *Service) ListSessions(ctx context.Context, workflowID string) ([]domain.Session, error) {
	return s.store.ListSessions(ctx, workflowID)
}

// InFlightSession returns the workflow's queued or running session, or nil.
func (s *Service) InFlightSession(ctx context.Context, workflowID string) (*domain.Session, error) {
	return s.store.GetInFlightSession(ctx, workflowID)
}

// markSessionRunning moves a queued session to running and announces it.
func (s *Service) markSessionRunning(ctx context.Context, session *domain.Session) error {
	current, err := s.store.GetSession(ctx, session.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if current == nil {
		return fmt.Errorf("session %s disappeared", session.SessionID)
	}
	if current.Status != domain.SessionStatusQueued {
		return &domain.IllegalTransitionError{
			SessionID: session.SessionID,
			From:      current.Status,
			To:        domain.SessionStatusRunning,
		}
	}
	if err := s.store.UpdateSessionStatus(ctx, session.SessionID, domain.SessionStatusRunning); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	session.Status = domain.SessionStatusRunning
	s.publish(hub.Event{
		Type:       domain.EventTypeSessionRunning,
		SessionID:  session.SessionID,
		WorkflowID: session.WorkflowID,
		Status:     domain.SessionStatusRunning,
	})
	return nil
}

// completeSession moves a session to a terminal status, stamps the
// workflow's last-run time and dispatches notifications. Terminal sessions
// are never overwritten.
func (s *Service) completeSession(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string) {
	current, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to get session %s for completion: %v", sessionID, err)
		return
	}
	if current == nil {
		log.Printf("ERROR: session %s disappeared before completion", sessionID)
		return
	}
	if current.Status.IsTerminal() {
		illegal := &domain.IllegalTransitionError{SessionID: sessionID, From: current.Status, To: status}
		log.Printf("ERROR: %v", illegal)
		return
	}

	if err := s.store.CompleteSession(ctx, sessionID, status, errMsg); err != nil {
		log.Printf("ERROR: failed to complete session %s: %v", sessionID, err)
		return
	}
	if err := s.store.TouchWorkflowLastRun(ctx, current.WorkflowID); err != nil {
		log.Printf("WARN: failed to stamp last run for workflow %s: %v", current.WorkflowID, err)
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		log.Printf("ERROR: failed to reload session %s after completion: %v", sessionID, err)
		return
	}
	log.Printf("INFO: session %s finished with status %s", sessionID, status)

	if s.notifier != nil {
		wf, err := s.store.GetWorkflow(ctx, session.WorkflowID)
		if err != nil {
			log.Printf("WARN: failed to load workflow %s for notification: %v", session.WorkflowID, err)
		} else if wf != nil {
			s.notifier.Dispatch(ctx, wf, session)
		}
	}

	s.publish(hub.Event{
		Type:       domain.EventTypeSessionDone,
		SessionID:  sessionID,
		WorkflowID: session.WorkflowID,
		Status:     status,
		Error:      errMsg,
	})
}

// RecoverStaleSessions fails in-flight sessions older than the configured
// stale threshold. Called at startup so that sessions orphaned by a crash
// do not hold their workflow's in-flight slot forever. A zero threshold
// disables recovery.
func (s *Service) RecoverStaleSessions(ctx context.Context) error {
	if s.config == nil || s.config.StaleSessionAfter <= 0 {
		return nil
	}
	sessions, err := s.store.ListInFlightSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list in-flight sessions: %w", err)
	}
	cutoff := time.Now().Add(-s.config.StaleSessionAfter)
	for _, session := range sessions {
		if session.StartedAt.After(cutoff) {
			continue
		}
		log.Printf("WARN: recovering stale session %s (started %s)", session.SessionID, session.StartedAt.Format(time.RFC3339))
		s.completeSession(ctx, session.SessionID, domain.SessionStatusFailed,
			fmt.Sprintf("session stale: no progress since %s", session.StartedAt.Format(time.RFC3339)))
	}
	return nil
}
