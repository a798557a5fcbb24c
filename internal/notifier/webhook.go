package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agrc/honeycomb/internal/errs"
)

// WebhookConfig configures an HTTP webhook notification channel, an
// additional pluggable channel beyond the original email/spreadsheet
// pair (e.g. a Slack incoming webhook).
type WebhookConfig struct {
	URL     string
	Enabled bool
}

// WebhookNotifier posts a JSON {subject, body} payload to a configured URL.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier returns a Notifier backed by cfg.
func NewWebhookNotifier(cfg WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, subject, body string) error {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		n.logger.Debug("webhook notifications disabled, no message sent", "subject", subject)
		return nil
	}

	payload, err := json.Marshal(map[string]string{"subject": subject, "body": body})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		wrapped := &errs.NotificationError{Cause: err}
		n.logger.Warn("webhook notification failed", "error", wrapped)
		return wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		wrapped := &errs.NotificationError{Cause: fmt.Errorf("webhook returned status %d", resp.StatusCode)}
		n.logger.Warn("webhook notification rejected", "error", wrapped)
		return wrapped
	}

	return nil
}
