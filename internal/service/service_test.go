package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xqin1/pipeflow/internal/agent"
	"github.com/xqin1/pipeflow/internal/config"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/store"
)

// fakeCap is a scripted capability for pipeline tests.
type fakeCap struct {
	id     string
	invoke func(ctx context.Context, in agent.Input) (string, error)

	mu      sync.Mutex
	calls   int
	inputs  []agent.Input
	blockCh chan struct{} // when set, Invoke waits here first
}

func (f *fakeCap) ID() string { return f.id }

func (f *fakeCap) Invoke(ctx context.Context, in agent.Input) (string, error) {
	if f.blockCh != nil {
		select {
		case <-f.blockCh:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.invoke != nil {
		return f.invoke(ctx, in)
	}
	return "output from " + f.id, nil
}

func (f *fakeCap) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCap) lastInput() agent.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return agent.Input{}
	}
	return f.inputs[len(f.inputs)-1]
}

// fakeResolver resolves ids against a fixed capability set.
type fakeResolver struct {
	caps map[string]*fakeCap
}

func newFakeResolver(caps ...*fakeCap) *fakeResolver {
	m := make(map[string]*fakeCap, len(caps))
	for _, c := range caps {
		m[c.id] = c
	}
	return &fakeResolver{caps: m}
}

func (r *fakeResolver) Resolve(sequence []string) ([]agent.Capability, error) {
	if len(sequence) == 0 {
		return nil, fmt.Errorf("agent sequence is empty")
	}
	out := make([]agent.Capability, 0, len(sequence))
	for _, id := range sequence {
		c, ok := r.caps[id]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", id)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeResolver) IDs() []string {
	ids := make([]string, 0, len(r.caps))
	for id := range r.caps {
		ids = append(ids, id)
	}
	return ids
}

// fakeNotifier counts terminal dispatches.
type fakeNotifier struct {
	mu       sync.Mutex
	calls    int
	sessions []*domain.Session
}

func (f *fakeNotifier) Dispatch(ctx context.Context, wf *domain.Workflow, session *domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sessions = append(f.sessions, session)
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, resolver CapabilityResolver, cfg *config.Config) (*Service, store.Store, *fakeNotifier) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if cfg == nil {
		cfg = &config.Config{}
	}
	notifier := &fakeNotifier{}
	svc := New(st, resolver, notifier, hub.NewHub(), nil, cfg)
	return svc, st, notifier
}

func mustCreateWorkflow(t *testing.T, svc *Service, agents []string) *domain.Workflow {
	t.Helper()
	wf, err := svc.CreateWorkflow(context.Background(), CreateWorkflowParams{
		Name:          "Daily digest",
		Topic:         "AI",
		AgentSequence: agents,
	})
	require.NoError(t, err)
	require.NotNil(t, wf)
	return wf
}

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

// waitForTerminal polls until the session reaches a terminal status.
func waitForTerminal(t *testing.T, st store.Store, sessionID string) *domain.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, err := st.GetSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, session)
		if session.Status.IsTerminal() {
			return session
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached a terminal status", sessionID)
	return nil
}
