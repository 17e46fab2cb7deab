package domain

import "time"

// Workflow is a named, schedulable definition of an ordered agent pipeline.
// Workflows are created and updated through the management API and are
// read-only to the scheduler and executor.
type Workflow struct {
	WorkflowID         string              `json:"workflow_id"`
	Name               string              `json:"name"`
	Topic              string              `json:"topic"`
	AgentSequence      []string            `json:"agent_sequence"`
	Schedule           string              `json:"schedule,omitempty"` // cron expression, empty = manual-only
	Enabled            bool                `json:"enabled"`
	NotificationConfig *NotificationConfig `json:"notification_config,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	LastRunAt          *time.Time          `json:"last_run_at,omitempty"`
}

// NotificationConfig holds the channel targets for completion notifications.
// Both fields are optional; a channel without configuration is skipped.
type NotificationConfig struct {
	Email      *EmailTarget `json:"email,omitempty"`
	WebhookURL string       `json:"webhook_url,omitempty"`
}

// EmailTarget is the destination for email notifications.
type EmailTarget struct {
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	SMTPHost string `json:"smtp_host,omitempty"`
	SMTPPort int    `json:"smtp_port,omitempty"`
}
