package commands

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/logging"
	"github.com/systmms/awsops/internal/notify"
	"github.com/systmms/awsops/internal/rotation"
	"github.com/systmms/awsops/internal/rotation/history"
)

// audit records a rotation run in the history directory and posts it to the
// webhook, whichever are configured. Neither can fail the run.
func audit(ctx context.Context, cfg *config.Config, started, finished time.Time, result *rotation.Result, runErr error) {
	entry := historyEntry(cfg, started, finished, result, runErr)

	if cfg.Audit.HistoryDir != "" {
		store := history.NewFileStore(cfg.Audit.HistoryDir)
		if err := store.Save(entry); err != nil {
			cfg.Logger.Warn("Failed to record rotation history: %v", err)
		} else {
			cfg.Logger.Debug("Recorded rotation %s", entry.ID)
		}
	}

	if cfg.Audit.WebhookURL != "" {
		hook := notify.NewWebhook(notify.WebhookConfig{
			URL:   cfg.Audit.WebhookURL,
			Retry: notify.RetryConfig{MaxAttempts: cfg.Audit.WebhookAttempts},
		})
		if err := hook.Send(ctx, notifyEvent(entry)); err != nil {
			cfg.Logger.Warn("Failed to send rotation notification: %v", err)
		}
	}
}

func historyEntry(cfg *config.Config, started, finished time.Time, result *rotation.Result, runErr error) *history.Entry {
	entry := &history.Entry{
		Timestamp:  started,
		User:       cfg.Rotation.UserName,
		Repository: cfg.GitHub.Repository,
		Status:     history.StatusSuccess,
		Duration:   finished.Sub(started),
	}

	var guard *dserrors.GuardError
	switch {
	case errors.As(runErr, &guard):
		entry.Status = history.StatusGuard
		entry.KeyCount = guard.Count
	case runErr != nil:
		entry.Status = history.StatusFailed
	}
	// Provider errors can echo request data; keep credentials out of the record.
	secrets := cfg.SecretValues()
	if runErr != nil {
		entry.Error = logging.Redact(runErr.Error(), secrets)
	}

	if result != nil {
		if result.Plan != nil {
			entry.KeyCount = len(result.Plan.Keys)
		}
		entry.Deactivated = result.Deactivated
		if result.DeactivationErr != nil {
			entry.DeactivationError = logging.Redact(result.DeactivationErr.Error(), secrets)
		}
		entry.NewKeyID = result.NewKeyID
		entry.Secrets = result.Secrets
	}
	return entry
}

func notifyEvent(entry *history.Entry) notify.Event {
	event := notify.Event{
		Type:        notify.EventCompleted,
		User:        entry.User,
		Repository:  entry.Repository,
		Deactivated: entry.Deactivated,
		NewKeyID:    entry.NewKeyID,
		Duration:    entry.Duration,
		Timestamp:   entry.Timestamp,
	}
	if entry.Error != "" {
		event.Error = errors.New(entry.Error)
	}
	switch entry.Status {
	case history.StatusGuard:
		event.Type = notify.EventGuarded
	case history.StatusFailed:
		event.Type = notify.EventFailed
	}
	return event
}
