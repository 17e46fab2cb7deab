package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xqin1/pipeflow/internal/agent"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
)

// runPipeline executes a session's stages sequentially. It owns the
// session's lifecycle from queued to a terminal state and always leaves
// the session terminal, even on panic.
func (s *Service) runPipeline(wf *domain.Workflow, session *domain.Session, caps []agent.Capability, query string) {
	defer s.workers.Done()

	// Detached from the triggering request: a manual trigger returns as
	// soon as the session is queued.
	ctx := context.Background()

	if err := s.markSessionRunning(ctx, session); err != nil {
		log.Printf("ERROR: failed to start session %s: %v", session.SessionID, err)
		s.completeSession(ctx, session.SessionID, domain.SessionStatusFailed, err.Error())
		return
	}

	prior := ""
	for i, cap := range caps {
		s.publish(hub.Event{
			Type:       domain.EventTypeStageStarted,
			SessionID:  session.SessionID,
			WorkflowID: wf.WorkflowID,
			AgentID:    cap.ID(),
			Stage:      i,
		})

		in := agent.Input{Topic: wf.Topic, PriorOutput: prior}
		if i == 0 {
			in.Query = query
		}

		startedAt := time.Now()
		output, err := s.invokeStage(ctx, cap, in)
		endedAt := time.Now()

		if err != nil {
			agentErr := &domain.AgentError{AgentID: cap.ID(), Message: err.Error()}
			result := &domain.StageResult{
				AgentID:   cap.ID(),
				Error:     err.Error(),
				StartedAt: startedAt,
				EndedAt:   endedAt,
			}
			if aerr := s.store.AppendStageResult(ctx, session.SessionID, result); aerr != nil {
				log.Printf("ERROR: failed to record failed stage for session %s: %v", session.SessionID, aerr)
			}
			log.Printf("WARN: session %s stage %d (%s) failed: %v", session.SessionID, i, cap.ID(), err)
			s.publish(hub.Event{
				Type:       domain.EventTypeStageFailed,
				SessionID:  session.SessionID,
				WorkflowID: wf.WorkflowID,
				AgentID:    cap.ID(),
				Stage:      i,
				Error:      err.Error(),
			})
			s.completeSession(ctx, session.SessionID, domain.SessionStatusFailed, agentErr.Error())
			return
		}

		result := &domain.StageResult{
			AgentID:   cap.ID(),
			Output:    output,
			StartedAt: startedAt,
			EndedAt:   endedAt,
		}
		if aerr := s.store.AppendStageResult(ctx, session.SessionID, result); aerr != nil {
			log.Printf("ERROR: failed to record stage result for session %s: %v", session.SessionID, aerr)
			s.completeSession(ctx, session.SessionID, domain.SessionStatusFailed,
				fmt.Sprintf("failed to record stage result: %v", aerr))
			return
		}
		s.publish(hub.Event{
			Type:       domain.EventTypeStageCompleted,
			SessionID:  session.SessionID,
			WorkflowID: wf.WorkflowID,
			AgentID:    cap.ID(),
			Stage:      i,
		})
		prior = output
	}

	s.completeSession(ctx, session.SessionID, domain.SessionStatusCompleted, "")
}

// invokeStage runs one capability with the optional per-stage timeout and
// panic containment. A panicking agent fails its stage, not the process.
func (s *Service) invokeStage(ctx context.Context, cap agent.Capability, in agent.Input) (output string, err error) {
	if s.config != nil && s.config.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StageTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	output, err = cap.Invoke(ctx, in)
	if errors.Is(err, context.DeadlineExceeded) && s.config != nil && s.config.StageTimeout > 0 {
		err = fmt.Errorf("stage timed out after %s", s.config.StageTimeout)
	}
	return output, err
}
