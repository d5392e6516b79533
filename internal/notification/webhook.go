package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fuomag9/checkpulse/internal/config"
)

// WebhookProvider posts alerts as JSON to a fixed URL
type WebhookProvider struct {
	client *http.Client
}

func init() {
	RegisterProvider(&WebhookProvider{client: &http.Client{Timeout: 10 * time.Second}})
}

func (w *WebhookProvider) Name() string {
	return "webhook"
}

func (w *WebhookProvider) Send(ctx context.Context, cfg *config.NotificationConfig, msg *Message) error {
	if err := w.Validate(cfg); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"recipient": msg.Recipient,
		"message":   msg.Body,
		"time":      msg.Time.UTC().Format(time.RFC3339),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Webhook.URL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "checkpulse/1.0")
	for key, value := range cfg.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (w *WebhookProvider) Validate(cfg *config.NotificationConfig) error {
	if cfg.Webhook.URL == "" {
		return fmt.Errorf("webhook url is required")
	}
	return nil
}
