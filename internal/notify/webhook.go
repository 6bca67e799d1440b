// Package notify posts rotation outcomes to an HTTP webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventType is the outcome a notification reports
type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventGuarded   EventType = "guarded"
)

// Event describes one rotation run
type Event struct {
	Type        EventType
	User        string
	Repository  string
	Deactivated string
	NewKeyID    string
	Error       error
	Duration    time.Duration
	Timestamp   time.Time
}

// RetryConfig holds retry configuration for webhooks
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 1, no retry).
	MaxAttempts int

	// InitialWait doubles after each failed attempt (default: 1s).
	InitialWait time.Duration
}

// WebhookConfig holds configuration for webhook notifications
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Retry   RetryConfig
	Timeout time.Duration
}

// Webhook sends rotation events as JSON
type Webhook struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhook creates a webhook sender, filling in defaults
func NewWebhook(config WebhookConfig) *Webhook {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = 1
	}
	if config.Retry.InitialWait == 0 {
		config.Retry.InitialWait = time.Second
	}

	return &Webhook{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Send posts event, retrying non-2xx responses and transport errors with
// exponential backoff.
func (w *Webhook) Send(ctx context.Context, event Event) error {
	payload, err := buildPayload(event)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.config.Retry.MaxAttempts; attempt++ {
		err := w.doSend(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < w.config.Retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff(attempt)):
			}
		}
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", w.config.Retry.MaxAttempts, lastErr)
}

func (w *Webhook) doSend(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// backoff is 2^(attempt-1) * InitialWait
func (w *Webhook) backoff(attempt int) time.Duration {
	return w.config.Retry.InitialWait * time.Duration(1<<(attempt-1))
}

func buildPayload(event Event) ([]byte, error) {
	payload := map[string]interface{}{
		"event":     string(event.Type),
		"user":      event.User,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
	}

	if event.Repository != "" {
		payload["repository"] = event.Repository
	}
	if event.Deactivated != "" {
		payload["deactivated_key_id"] = event.Deactivated
	}
	if event.NewKeyID != "" {
		payload["new_key_id"] = event.NewKeyID
	}
	if event.Duration > 0 {
		payload["duration_seconds"] = event.Duration.Seconds()
	}
	if event.Error != nil {
		payload["error"] = event.Error.Error()
	}

	return json.Marshal(payload)
}
