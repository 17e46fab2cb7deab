package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xqin1/pipeflow/internal/agent"
	"github.com/xqin1/pipeflow/internal/config"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/service"
	"github.com/xqin1/pipeflow/internal/store"
)

type stubCap struct {
	id    string
	block chan struct{}
}

func (s *stubCap) ID() string { return s.id }

func (s *stubCap) Invoke(ctx context.Context, in agent.Input) (string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "output", nil
}

type stubResolver struct{ cap *stubCap }

func (r *stubResolver) Resolve(sequence []string) ([]agent.Capability, error) {
	caps := make([]agent.Capability, len(sequence))
	for i := range sequence {
		caps[i] = r.cap
	}
	return caps, nil
}

func (r *stubResolver) IDs() []string { return []string{r.cap.id} }

func newRunnerFixture(t *testing.T, cap *stubCap) (*Runner, *service.Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := service.New(st, &stubResolver{cap: cap}, nil, hub.NewHub(), nil, &config.Config{})
	return NewRunner(svc, 20*time.Second), svc, st
}

func createScheduled(t *testing.T, svc *service.Service, schedule string) *domain.Workflow {
	t.Helper()
	wf, err := svc.CreateWorkflow(context.Background(), service.CreateWorkflowParams{
		Name:          "digest",
		Topic:         "AI",
		AgentSequence: []string{"Research"},
		Schedule:      schedule,
	})
	require.NoError(t, err)
	return wf
}

func TestTickFiresDueWorkflow(t *testing.T) {
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research"})
	wf := createScheduled(t, svc, "0 9 * * *")

	now := time.Date(2026, 3, 2, 9, 0, 12, 0, time.UTC)
	require.NoError(t, runner.Tick(context.Background(), now))

	sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.TriggerScheduled, sessions[0].Trigger)
	require.NoError(t, svc.Drain(context.Background()))
}

func TestTickSkipsNotDueWorkflow(t *testing.T) {
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research"})
	wf := createScheduled(t, svc, "0 9 * * *")

	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	require.NoError(t, runner.Tick(context.Background(), now))

	sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTickFiresAtMostOncePerMinute(t *testing.T) {
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research"})
	wf := createScheduled(t, svc, "0 9 * * *")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	// Three ticks land inside the same due minute.
	for _, offset := range []time.Duration{0, 20 * time.Second, 40 * time.Second} {
		require.NoError(t, runner.Tick(context.Background(), base.Add(offset)))
	}
	require.NoError(t, svc.Drain(context.Background()))

	sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestTickFiresAgainNextDueMinute(t *testing.T) {
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research"})
	wf := createScheduled(t, svc, "*/5 * * * *")

	require.NoError(t, runner.Tick(context.Background(), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, svc.Drain(context.Background()))
	require.NoError(t, runner.Tick(context.Background(), time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)))
	require.NoError(t, svc.Drain(context.Background()))

	sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestTickSkipsWhenSessionInFlight(t *testing.T) {
	block := make(chan struct{})
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research", block: block})
	wf := createScheduled(t, svc, "* * * * *")

	require.NoError(t, runner.Tick(context.Background(), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	// Next minute arrives while the first session is still running; the
	// firing is dropped, not queued.
	require.NoError(t, runner.Tick(context.Background(), time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)))

	close(block)
	require.NoError(t, svc.Drain(context.Background()))

	sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestTickIgnoresDisabledAndManualOnly(t *testing.T) {
	runner, svc, st := newRunnerFixture(t, &stubCap{id: "Research"})

	manual := createScheduled(t, svc, "") // no schedule
	scheduled := createScheduled(t, svc, "0 9 * * *")
	disabled := false
	_, err := svc.UpdateWorkflow(context.Background(), scheduled.WorkflowID, service.UpdateWorkflowParams{
		Enabled: &disabled,
	})
	require.NoError(t, err)

	require.NoError(t, runner.Tick(context.Background(), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	for _, wf := range []*domain.Workflow{manual, scheduled} {
		sessions, err := st.ListSessions(context.Background(), wf.WorkflowID)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	}
}

func TestRunnerStartStop(t *testing.T) {
	runner, _, _ := newRunnerFixture(t, &stubCap{id: "Research"})
	assert.False(t, runner.Running())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	require.Eventually(t, runner.Running, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.False(t, runner.Running())
}
