package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPWebhookSender posts summaries to a webhook URL as JSON. The payload
// carries a Slack-compatible "text" field alongside the structured summary.
type HTTPWebhookSender struct {
	httpClient *http.Client
}

// NewHTTPWebhookSender creates a webhook sender.
func NewHTTPWebhookSender(timeout time.Duration) *HTTPWebhookSender {
	return &HTTPWebhookSender{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ensure HTTPWebhookSender implements WebhookSender.
var _ WebhookSender = (*HTTPWebhookSender)(nil)

type webhookPayload struct {
	Text    string   `json:"text"`
	Summary *Summary `json:"summary"`
}

// Send posts the summary. Any non-2xx response is an error.
func (s *HTTPWebhookSender) Send(ctx context.Context, url string, summary *Summary) error {
	text := fmt.Sprintf("Workflow '%s' %s for topic '%s'", summary.WorkflowName, summary.Status, summary.Topic)
	if failed := failedStages(summary); failed > 0 {
		text += fmt.Sprintf(" (%d stage(s) failed)", failed)
	}

	body, err := json.Marshal(webhookPayload{Text: text, Summary: summary})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func failedStages(summary *Summary) int {
	count := 0
	for _, s := range summary.StageSummaries {
		if strings.Contains(s, "failed:") {
			count++
		}
	}
	return count
}
