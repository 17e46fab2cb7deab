// Package notify builds completion summaries and hands them off to the
// configured notification channels.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xqin1/pipeflow/internal/domain"
)

// finalOutputExcerptLen bounds the excerpt included in a summary.
const finalOutputExcerptLen = 500

// Summary is the payload handed to notification channels for a terminal
// session.
type Summary struct {
	WorkflowName   string               `json:"workflow_name"`
	Topic          string               `json:"topic"`
	Status         domain.SessionStatus `json:"status"`
	StageSummaries []string             `json:"stage_summaries"`
	FinalOutput    string               `json:"final_output"`
	StartedAt      time.Time            `json:"started_at"`
	EndedAt        *time.Time           `json:"ended_at,omitempty"`
}

// EmailSender delivers a summary to an email target.
type EmailSender interface {
	Send(ctx context.Context, target *domain.EmailTarget, subject, body string) error
}

// WebhookSender posts a summary to a webhook URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, summary *Summary) error
}

// Dispatcher fans a terminal session summary out to the workflow's
// configured channels. Delivery is fire-and-forget: failures are logged and
// never alter session state.
type Dispatcher struct {
	email   EmailSender
	webhook WebhookSender
}

// NewDispatcher creates a dispatcher with the given channel implementations.
func NewDispatcher(email EmailSender, webhook WebhookSender) *Dispatcher {
	return &Dispatcher{email: email, webhook: webhook}
}

// Dispatch builds the summary and submits one delivery attempt per
// configured channel. Channels with no configuration are silently skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, wf *domain.Workflow, session *domain.Session) {
	cfg := wf.NotificationConfig
	if cfg == nil {
		return
	}

	summary := BuildSummary(wf, session)

	if cfg.Email != nil && d.email != nil {
		subject := fmt.Sprintf("Workflow '%s' %s", wf.Name, session.Status)
		if err := d.email.Send(ctx, cfg.Email, subject, formatEmailBody(summary)); err != nil {
			log.Printf("WARN: email notification for session %s failed: %v", session.SessionID, err)
		}
	}

	if cfg.WebhookURL != "" && d.webhook != nil {
		if err := d.webhook.Send(ctx, cfg.WebhookURL, summary); err != nil {
			log.Printf("WARN: webhook notification for session %s failed: %v", session.SessionID, err)
		}
	}
}

// BuildSummary assembles the notification summary for a terminal session.
func BuildSummary(wf *domain.Workflow, session *domain.Session) *Summary {
	stages := make([]string, 0, len(session.StageResults))
	for _, r := range session.StageResults {
		if r.Error != "" {
			stages = append(stages, fmt.Sprintf("%s: failed: %s", r.AgentID, r.Error))
		} else {
			stages = append(stages, fmt.Sprintf("%s: ok", r.AgentID))
		}
	}

	output := session.FinalOutput()
	if len(output) > finalOutputExcerptLen {
		output = output[:finalOutputExcerptLen] + "..."
	}

	return &Summary{
		WorkflowName:   wf.Name,
		Topic:          wf.Topic,
		Status:         session.Status,
		StageSummaries: stages,
		FinalOutput:    output,
		StartedAt:      session.StartedAt,
		EndedAt:        session.EndedAt,
	}
}

func formatEmailBody(summary *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n", summary.WorkflowName)
	fmt.Fprintf(&b, "Topic: %s\n", summary.Topic)
	fmt.Fprintf(&b, "Status: %s\n", summary.Status)
	fmt.Fprintf(&b, "Started: %s\n", summary.StartedAt.Format(time.RFC3339))
	if summary.EndedAt != nil {
		fmt.Fprintf(&b, "Ended: %s\n", summary.EndedAt.Format(time.RFC3339))
	}
	b.WriteString("\nStages:\n")
	for _, s := range summary.StageSummaries {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	if summary.FinalOutput != "" {
		fmt.Fprintf(&b, "\nFinal output:\n%s\n", summary.FinalOutput)
	}
	return b.String()
}
