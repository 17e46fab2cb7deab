package domain

import "time"

// Session is one execution instance of a workflow. WorkflowID is a soft
// reference: the workflow may be deleted while its sessions are retained
// as history.
type Session struct {
	SessionID    string        `json:"session_id"`
	WorkflowID   string        `json:"workflow_id"`
	Trigger      Trigger       `json:"trigger"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Error        string        `json:"error,omitempty"`
	StageResults []StageResult `json:"stage_results"`
}

// StageResult is the outcome of one agent invocation within a session.
// Error is set iff the stage failed, in which case Output is empty.
type StageResult struct {
	AgentID   string    `json:"agent_id"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// FinalOutput returns the output of the last successful stage, or empty
// if no stage produced output.
func (s *Session) FinalOutput() string {
	for i := len(s.StageResults) - 1; i >= 0; i-- {
		if s.StageResults[i].Error == "" {
			return s.StageResults[i].Output
		}
	}
	return ""
}
