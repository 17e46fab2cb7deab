package store

import (
	"context"
	"testing"
	"time"

	"github.com/xqin1/pipeflow/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestWorkflow(id string) *domain.Workflow {
	return &domain.Workflow{
		WorkflowID:    id,
		Name:          "Daily AI digest",
		Topic:         "AI research",
		AgentSequence: []string{"Research", "Summarizer"},
		Schedule:      "0 9 * * *",
		Enabled:       true,
		CreatedAt:     time.Now(),
	}
}

func TestSQLiteStoreWorkflowCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wf := newTestWorkflow("wf_1")
	wf.NotificationConfig = &domain.NotificationConfig{
		Email:      &domain.EmailTarget{To: "ops@example.com", SMTPHost: "smtp.example.com", SMTPPort: 587},
		WebhookURL: "https://hooks.example.com/T123",
	}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	got, err := s.GetWorkflow(ctx, "wf_1")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if got == nil || got.Name != "Daily AI digest" {
		t.Fatalf("unexpected workflow: %+v", got)
	}
	if len(got.AgentSequence) != 2 || got.AgentSequence[0] != "Research" {
		t.Fatalf("unexpected agent sequence: %v", got.AgentSequence)
	}
	if got.NotificationConfig == nil || got.NotificationConfig.Email.To != "ops@example.com" {
		t.Fatalf("unexpected notification config: %+v", got.NotificationConfig)
	}

	got.Name = "Renamed"
	got.Enabled = false
	if err := s.UpdateWorkflow(ctx, got); err != nil {
		t.Fatalf("UpdateWorkflow failed: %v", err)
	}
	got, err = s.GetWorkflow(ctx, "wf_1")
	if err != nil {
		t.Fatalf("GetWorkflow after update failed: %v", err)
	}
	if got.Name != "Renamed" || got.Enabled {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := s.DeleteWorkflow(ctx, "wf_1"); err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}
	got, err = s.GetWorkflow(ctx, "wf_1")
	if err != nil {
		t.Fatalf("GetWorkflow after delete failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestSQLiteStoreListEnabledScheduled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	scheduled := newTestWorkflow("wf_sched")
	if err := s.CreateWorkflow(ctx, scheduled); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	manual := newTestWorkflow("wf_manual")
	manual.Schedule = ""
	if err := s.CreateWorkflow(ctx, manual); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	disabled := newTestWorkflow("wf_disabled")
	disabled.Enabled = false
	if err := s.CreateWorkflow(ctx, disabled); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	workflows, err := s.ListEnabledScheduled(ctx)
	if err != nil {
		t.Fatalf("ListEnabledScheduled failed: %v", err)
	}
	if len(workflows) != 1 || workflows[0].WorkflowID != "wf_sched" {
		t.Fatalf("expected only wf_sched, got %+v", workflows)
	}
}

func TestSQLiteStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wf := newTestWorkflow("wf_1")
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	session := &domain.Session{
		SessionID:  "sess_1",
		WorkflowID: "wf_1",
		Trigger:    domain.TriggerScheduled,
		Status:     domain.SessionStatusQueued,
		StartedAt:  time.Now(),
	}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	inFlight, err := s.GetInFlightSession(ctx, "wf_1")
	if err != nil {
		t.Fatalf("GetInFlightSession failed: %v", err)
	}
	if inFlight == nil || inFlight.SessionID != "sess_1" {
		t.Fatalf("expected sess_1 in flight, got %+v", inFlight)
	}

	if err := s.UpdateSessionStatus(ctx, "sess_1", domain.SessionStatusRunning); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	now := time.Now()
	if err := s.AppendStageResult(ctx, "sess_1", &domain.StageResult{
		AgentID: "Research", Output: "raw findings", StartedAt: now, EndedAt: now,
	}); err != nil {
		t.Fatalf("AppendStageResult failed: %v", err)
	}
	if err := s.AppendStageResult(ctx, "sess_1", &domain.StageResult{
		AgentID: "Summarizer", Output: "summary", StartedAt: now, EndedAt: now,
	}); err != nil {
		t.Fatalf("AppendStageResult failed: %v", err)
	}

	if err := s.CompleteSession(ctx, "sess_1", domain.SessionStatusCompleted, ""); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != domain.SessionStatusCompleted || got.EndedAt == nil {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.StageResults) != 2 {
		t.Fatalf("expected 2 stage results, got %d", len(got.StageResults))
	}
	if got.StageResults[0].AgentID != "Research" || got.StageResults[1].AgentID != "Summarizer" {
		t.Fatalf("stage results out of order: %+v", got.StageResults)
	}

	inFlight, err = s.GetInFlightSession(ctx, "wf_1")
	if err != nil {
		t.Fatalf("GetInFlightSession failed: %v", err)
	}
	if inFlight != nil {
		t.Fatalf("expected no in-flight session after completion, got %+v", inFlight)
	}
}

func TestSQLiteStoreTerminalSessionStableReads(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	session := &domain.Session{
		SessionID:  "sess_1",
		WorkflowID: "wf_1",
		Trigger:    domain.TriggerManual,
		Status:     domain.SessionStatusQueued,
		StartedAt:  time.Now(),
	}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	now := time.Now()
	if err := s.AppendStageResult(ctx, "sess_1", &domain.StageResult{
		AgentID: "Research", Error: "timeout", StartedAt: now, EndedAt: now,
	}); err != nil {
		t.Fatalf("AppendStageResult failed: %v", err)
	}
	if err := s.CompleteSession(ctx, "sess_1", domain.SessionStatusFailed, "agent Research: timeout"); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	first, err := s.GetSession(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	second, err := s.GetSession(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(first.StageResults) != len(second.StageResults) {
		t.Fatalf("stage results changed between reads")
	}
	for i := range first.StageResults {
		if first.StageResults[i] != second.StageResults[i] {
			t.Fatalf("stage result %d differs between reads: %+v vs %+v",
				i, first.StageResults[i], second.StageResults[i])
		}
	}
}

func TestSQLiteStoreListSessionsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"sess_a", "sess_b", "sess_c"} {
		session := &domain.Session{
			SessionID:  id,
			WorkflowID: "wf_1",
			Trigger:    domain.TriggerScheduled,
			Status:     domain.SessionStatusCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	sessions, err := s.ListSessions(ctx, "wf_1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "sess_c" || sessions[2].SessionID != "sess_a" {
		t.Fatalf("sessions not most-recent-first: %+v", sessions)
	}
}

func TestSQLiteStoreSessionsSurviveWorkflowDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wf := newTestWorkflow("wf_1")
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	session := &domain.Session{
		SessionID:  "sess_1",
		WorkflowID: "wf_1",
		Trigger:    domain.TriggerScheduled,
		Status:     domain.SessionStatusCompleted,
		StartedAt:  time.Now(),
	}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := s.DeleteWorkflow(ctx, "wf_1"); err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}

	got, err := s.GetSession(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatalf("session should survive workflow delete")
	}
}
