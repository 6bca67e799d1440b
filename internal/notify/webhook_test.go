package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventTime = time.Date(2025, 10, 8, 6, 0, 0, 0, time.UTC)

func TestWebhook_Send(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]interface{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer hook-token", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	hook := NewWebhook(WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer hook-token"},
	})

	err := hook.Send(context.Background(), Event{
		Type:        EventCompleted,
		User:        "ci-deployer",
		Repository:  "acme/deploy",
		Deactivated: "AKIAOLDKEY0000000001",
		NewKeyID:    "AKIANEWKEY0000000001",
		Duration:    1500 * time.Millisecond,
		Timestamp:   eventTime,
	})
	require.NoError(t, err)

	body := <-received
	assert.Equal(t, "completed", body["event"])
	assert.Equal(t, "ci-deployer", body["user"])
	assert.Equal(t, "acme/deploy", body["repository"])
	assert.Equal(t, "AKIAOLDKEY0000000001", body["deactivated_key_id"])
	assert.Equal(t, "AKIANEWKEY0000000001", body["new_key_id"])
	assert.Equal(t, 1.5, body["duration_seconds"])
	assert.Equal(t, "2025-10-08T06:00:00Z", body["timestamp"])
	assert.NotContains(t, body, "error")
}

func TestWebhook_SendRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	hook := NewWebhook(WebhookConfig{
		URL:   server.URL,
		Retry: RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond},
	})

	require.NoError(t, hook.Send(context.Background(), Event{Type: EventFailed, User: "ci-deployer", Error: errors.New("boom")}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhook_SendGivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	hook := NewWebhook(WebhookConfig{
		URL:   server.URL,
		Retry: RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond},
	})

	err := hook.Send(context.Background(), Event{Type: EventGuarded, User: "ci-deployer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook failed after 2 attempts")
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhook_SendDoesNotRetryByDefault(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	err := NewWebhook(WebhookConfig{URL: server.URL}).Send(context.Background(), Event{Type: EventFailed, User: "ci-deployer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook failed after 1 attempts")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWebhook_SendHonoursCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	hook := NewWebhook(WebhookConfig{
		URL:   server.URL,
		Retry: RetryConfig{MaxAttempts: 5, InitialWait: time.Hour},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := hook.Send(ctx, Event{Type: EventFailed, User: "ci-deployer"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebhook_Backoff(t *testing.T) {
	t.Parallel()

	hook := NewWebhook(WebhookConfig{URL: "https://hooks.example.com"})

	assert.Equal(t, time.Second, hook.backoff(1))
	assert.Equal(t, 2*time.Second, hook.backoff(2))
	assert.Equal(t, 4*time.Second, hook.backoff(3))
	assert.Equal(t, 10*time.Second, hook.config.Timeout)
	assert.Equal(t, 1, hook.config.Retry.MaxAttempts)
}

func TestBuildPayloadIncludesError(t *testing.T) {
	t.Parallel()

	data, err := buildPayload(Event{Type: EventFailed, User: "ci-deployer", Error: errors.New("iam error during create access key"), Timestamp: eventTime})
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "iam error during create access key", body["error"])
	assert.NotContains(t, body, "duration_seconds")
}
