package domain

import "fmt"

// ValidationError indicates a workflow definition that was rejected before
// storage (unknown agent, bad cron expression, missing fields).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError indicates a trigger was attempted while another session for
// the same workflow is still in flight.
type ConflictError struct {
	WorkflowID string
	SessionID  string // the in-flight session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("workflow %s already has session %s in flight", e.WorkflowID, e.SessionID)
}

// AgentError indicates a stage's external agent call failed. It is recorded
// on the stage result and halts the pipeline; it never escapes the executor.
type AgentError struct {
	AgentID string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.AgentID, e.Message)
}

// IllegalTransitionError indicates a session state write that violates the
// queued -> running -> {completed, failed} state machine. It should be
// unreachable; observing one indicates a concurrency bug.
type IllegalTransitionError struct {
	SessionID string
	From      SessionStatus
	To        SessionStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("session %s: illegal transition %s -> %s", e.SessionID, e.From, e.To)
}
