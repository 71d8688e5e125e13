package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookSink posts events to a configured URL. Delivery is best-effort;
// failures are logged and forgotten.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink for the given webhook URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	RunID string `json:"run_id"`
	Event Event  `json:"event"`
}

// Publish posts one event.
func (w *WebhookSink) Publish(ctx context.Context, runID string, ev Event) {
	body, err := json.Marshal(webhookPayload{RunID: runID, Event: ev})
	if err != nil {
		zap.L().Warn("progress: marshal webhook event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("progress: create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		zap.L().Warn("progress: webhook post", zap.String("run_id", runID), zap.Error(err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		zap.L().Warn("progress: webhook rejected event",
			zap.String("run_id", runID),
			zap.Int("status", resp.StatusCode),
		)
	}
}
