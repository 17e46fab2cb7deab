package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/schedule"
)

// CreateWorkflowParams are the inputs for a new workflow definition.
type CreateWorkflowParams struct {
	Name               string
	Topic              string
	AgentSequence      []string
	Schedule           string // empty = manual-only
	Enabled            *bool  // default true
	NotificationConfig *domain.NotificationConfig
}

// CreateWorkflow validates and stores a new workflow definition. Agent
// identifiers are resolved against the registry here so that execution
// never sees an unknown agent.
func (s *Service) CreateWorkflow(ctx context.Context, p CreateWorkflowParams) (*domain.Workflow, error) {
	if p.Name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if p.Topic == "" {
		return nil, domain.NewValidationError("topic is required")
	}
	if err := s.validateDefinition(ctx, p.Name, p.AgentSequence, p.Schedule); err != nil {
		return nil, err
	}

	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}

	wf := &domain.Workflow{
		WorkflowID:         "wf_" + uuid.New().String()[:8],
		Name:               p.Name,
		Topic:              p.Topic,
		AgentSequence:      p.AgentSequence,
		Schedule:           p.Schedule,
		Enabled:            enabled,
		NotificationConfig: p.NotificationConfig,
		CreatedAt:          time.Now(),
	}
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return wf, nil
}

// UpdateWorkflowParams are partial updates; nil fields are left unchanged.
type UpdateWorkflowParams struct {
	Name               *string
	Topic              *string
	AgentSequence      []string
	Schedule           *string
	Enabled            *bool
	NotificationConfig *domain.NotificationConfig
}

// UpdateWorkflow applies a partial update, re-validating the resulting
// definition. Returns (nil, nil) if the workflow does not exist.
func (s *Service) UpdateWorkflow(ctx context.Context, workflowID string, p UpdateWorkflowParams) (*domain.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if wf == nil {
		return nil, nil
	}

	if p.Name != nil {
		wf.Name = *p.Name
	}
	if p.Topic != nil {
		wf.Topic = *p.Topic
	}
	if p.AgentSequence != nil {
		wf.AgentSequence = p.AgentSequence
	}
	if p.Schedule != nil {
		wf.Schedule = *p.Schedule
	}
	if p.Enabled != nil {
		wf.Enabled = *p.Enabled
	}
	if p.NotificationConfig != nil {
		wf.NotificationConfig = p.NotificationConfig
	}

	if wf.Name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if wf.Topic == "" {
		return nil, domain.NewValidationError("topic is required")
	}
	if err := s.validateDefinition(ctx, wf.Name, wf.AgentSequence, wf.Schedule); err != nil {
		return nil, err
	}

	if err := s.store.UpdateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	return wf, nil
}

func (s *Service) validateDefinition(ctx context.Context, name string, agents []string, cronExpr string) error {
	if _, err := s.resolver.Resolve(agents); err != nil {
		return domain.NewValidationError("invalid agent sequence: %v (known agents: %v)", err, s.resolver.IDs())
	}
	if cronExpr != "" {
		if _, err := schedule.Parse(cronExpr); err != nil {
			return domain.NewValidationError("invalid schedule: %v", err)
		}
	}
	if s.policyEngine != nil {
		decision, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{
			"name":           name,
			"agent_sequence": agents,
			"schedule":       cronExpr,
		})
		if err != nil {
			return fmt.Errorf("failed to evaluate workflow policy: %w", err)
		}
		if decision != "allow" {
			return domain.NewValidationError("workflow rejected by policy")
		}
	}
	return nil
}

// GetWorkflow retrieves a workflow; (nil, nil) if it does not exist.
func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	return s.store.GetWorkflow(ctx, workflowID)
}

// ListWorkflows returns all workflow definitions.
func (s *Service) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}

// ListScheduledWorkflows returns enabled workflows with a schedule.
func (s *Service) ListScheduledWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	return s.store.ListEnabledScheduled(ctx)
}

// DeleteWorkflow removes a workflow definition, retaining its sessions as
// history. Returns false if the workflow does not exist.
func (s *Service) DeleteWorkflow(ctx context.Context, workflowID string) (bool, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return false, fmt.Errorf("failed to get workflow: %w", err)
	}
	if wf == nil {
		return false, nil
	}
	if err := s.store.DeleteWorkflow(ctx, workflowID); err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}
	return true, nil
}

// ScheduleEntry describes one scheduled workflow for the status endpoint.
type ScheduleEntry struct {
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	NextDue    time.Time `json:"next_due"`
}

// ScheduleOverview returns the next due instant for every enabled
// scheduled workflow.
func (s *Service) ScheduleOverview(ctx context.Context, now time.Time) ([]ScheduleEntry, error) {
	workflows, err := s.store.ListEnabledScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	entries := make([]ScheduleEntry, 0, len(workflows))
	for _, wf := range workflows {
		next, err := schedule.NextAfter(wf.Schedule, now)
		if err != nil {
			// Validated at creation; a parse failure here means the store
			// holds a definition from an older, laxer validator.
			continue
		}
		entries = append(entries, ScheduleEntry{
			WorkflowID: wf.WorkflowID,
			Name:       wf.Name,
			Schedule:   wf.Schedule,
			NextDue:    next,
		})
	}
	return entries, nil
}
