// Package slack posts escalated support decisions to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/supportdesk/internal/decision"
)

const (
	maxTextLen  = 3000
	httpTimeout = 10 * time.Second
)

// Notifier sends escalation notices to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts an escalated decision to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, d *decision.Decision) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(d))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "escalation sent to slack", "decision_id", d.ID, "status", d.Status)
	return nil
}

func buildMessage(d *decision.Decision) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(d),
			{"type": "divider"},
			fieldsBlock(d),
			{"type": "divider"},
			quoteBlock("Customer message", d.Message, "_Empty message._"),
			quoteBlock("Suggested reply", d.Reply, "_No canned reply matched._"),
			{"type": "divider"},
			contextBlock(d),
		},
	}
}

func headerBlock(d *decision.Decision) map[string]any {
	emoji := "\U0001f7e1" // yellow circle
	title := "Needs a human"
	if d.Status == decision.StatusRiskDetected {
		emoji = "\U0001f534" // red circle
		title = "Reply needs approval"
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s: %s", emoji, title, d.Intent),
		},
	}
}

func fieldsBlock(d *decision.Decision) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", d.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", d.Action),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Intent:* %s", d.Intent),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Model risk:* %t", d.ModelRisk),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func quoteBlock(title, text, empty string) map[string]any {
	text = truncate(text, maxTextLen)
	if text == "" {
		text = empty
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*\n\n%s", title, text),
		},
	}
}

func contextBlock(d *decision.Decision) map[string]any {
	model := d.Model
	if model == "" {
		model = "unknown model"
	}

	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("supportdesk • decision %s • %s • %s", d.ID, model, d.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
