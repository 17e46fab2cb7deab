// Package domain defines the core domain models for the workflow engine.
package domain

// SessionStatus represents the status of a workflow session.
type SessionStatus string

const (
	SessionStatusQueued    SessionStatus = "queued"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// IsInFlight reports whether a session in this status occupies the
// single-in-flight slot for its workflow.
func (s SessionStatus) IsInFlight() bool {
	return s == SessionStatusQueued || s == SessionStatusRunning
}

// Trigger represents how a session was started.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// EventType represents the type of a live session event pushed to the hub.
type EventType string

const (
	EventTypeSessionQueued  EventType = "session_queued"
	EventTypeSessionRunning EventType = "session_running"
	EventTypeStageStarted   EventType = "stage_started"
	EventTypeStageCompleted EventType = "stage_completed"
	EventTypeStageFailed    EventType = "stage_failed"
	EventTypeSessionDone    EventType = "session_done"
)
