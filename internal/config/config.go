package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/logging"
)

// Environment variable names read by awsops
const (
	EnvRegion             = "AWS_DEFAULT_REGION"
	EnvRegionFallback     = "AWS_REGION"
	EnvAccessKeyID        = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken       = "AWS_SESSION_TOKEN"
	EnvIAMUserName        = "IAM_USER_NAME"
	EnvAccessKeySecret    = "ROTATE_ACCESS_KEY_SECRET_NAME"
	EnvSecretKeySecret    = "ROTATE_SECRET_KEY_SECRET_NAME"
	EnvGitHubToken        = "GITHUB_TOKEN"
	EnvGitHubRepository   = "GITHUB_REPOSITORY"
	EnvGitHubAPIURL       = "GITHUB_API_URL"
	EnvECSCluster         = "ECS_CLUSTER"
	EnvECSService         = "ECS_SERVICE"
	EnvMetricsOutput      = "METRICS_OUTPUT"
	EnvMetricsPeriod      = "METRICS_PERIOD"
	EnvMetricsWindow      = "METRICS_WINDOW"
	EnvMetricsStart       = "METRICS_START"
	EnvMetricsEnd         = "METRICS_END"
	EnvMetricsDefinitions = "METRICS_DEFINITIONS"
	EnvPromTextfile       = "AWSOPS_PROM_TEXTFILE"
	EnvHistoryDir         = "AWSOPS_HISTORY_DIR"
	EnvWebhookURL         = "AWSOPS_WEBHOOK_URL"
	EnvWebhookAttempts    = "AWSOPS_WEBHOOK_ATTEMPTS"
)

// Defaults applied when the corresponding variable is unset
const (
	DefaultRegion          = "ap-south-1"
	DefaultAccessKeySecret = "AWS_ACCESS_KEY_ID"
	DefaultSecretKeySecret = "AWS_SECRET_ACCESS_KEY"
	DefaultMetricsOutput   = "ecs_metrics.csv"
	DefaultMetricsPeriod   = time.Hour
	DefaultMetricsWindow   = 24 * time.Hour
	DefaultWebhookAttempts = 1
	maxWebhookAttempts     = 10
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Config holds the runtime configuration. It is built once at startup
// and handed to each command.
type Config struct {
	Logger *logging.Logger

	AWS       AWSConfig
	Rotation  RotationConfig
	GitHub    GitHubConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
	Audit     AuditConfig
}

// AWSConfig holds the caller identity and region
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// HasStaticCredentials reports whether explicit caller keys were supplied
func (a AWSConfig) HasStaticCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// RotationConfig names the principal and the secrets that receive its keys
type RotationConfig struct {
	UserName            string
	AccessKeySecretName string
	SecretKeySecretName string
}

// GitHubConfig identifies the repository whose Actions secrets are updated
type GitHubConfig struct {
	Token      string
	Repository string
	APIURL     string
}

// Owner returns the owner half of owner/name
func (g GitHubConfig) Owner() string {
	owner, _, _ := strings.Cut(g.Repository, "/")
	return owner
}

// Repo returns the name half of owner/name
func (g GitHubConfig) Repo() string {
	_, repo, _ := strings.Cut(g.Repository, "/")
	return repo
}

// MetricsConfig scopes the ECS metrics export
type MetricsConfig struct {
	Cluster         string
	Service         string
	Output          string
	Period          time.Duration
	Window          time.Duration
	Start           time.Time
	End             time.Time
	DefinitionsPath string
}

// FixedWindow reports whether an explicit start/end pair was configured
func (m MetricsConfig) FixedWindow() bool {
	return !m.Start.IsZero()
}

// TelemetryConfig controls the Prometheus textfile written after each run
type TelemetryConfig struct {
	TextfilePath string
}

// AuditConfig controls where rotation outcomes are recorded. Both sinks are
// optional.
type AuditConfig struct {
	// HistoryDir holds one JSON file per rotation run.
	HistoryDir      string
	// WebhookURL receives a JSON event after each rotation run.
	WebhookURL      string
	// WebhookAttempts bounds delivery tries; 1 means no retry.
	WebhookAttempts int
}

// SecretValues returns the configured credentials that must never be
// written to logs, history records or notifications.
func (c *Config) SecretValues() []string {
	return []string{c.AWS.SecretAccessKey, c.AWS.SessionToken, c.GitHub.Token}
}

// Load builds a Config from the process environment
func Load(logger *logging.Logger) (*Config, error) {
	return FromEnv(os.LookupEnv, logger)
}

// FromEnv builds a Config from lookup. Only malformed values fail here;
// required variables are checked by the Validate methods of the command
// that needs them.
func FromEnv(lookup LookupFunc, logger *logging.Logger) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	getDefault := func(key, def string) string {
		if v := get(key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Logger: logger,
		AWS: AWSConfig{
			Region:          getDefault(EnvRegion, getDefault(EnvRegionFallback, DefaultRegion)),
			AccessKeyID:     get(EnvAccessKeyID),
			SecretAccessKey: get(EnvSecretAccessKey),
			SessionToken:    get(EnvSessionToken),
		},
		Rotation: RotationConfig{
			UserName:            get(EnvIAMUserName),
			AccessKeySecretName: getDefault(EnvAccessKeySecret, DefaultAccessKeySecret),
			SecretKeySecretName: getDefault(EnvSecretKeySecret, DefaultSecretKeySecret),
		},
		GitHub: GitHubConfig{
			Token:      get(EnvGitHubToken),
			Repository: get(EnvGitHubRepository),
			APIURL:     get(EnvGitHubAPIURL),
		},
		Metrics: MetricsConfig{
			Cluster:         get(EnvECSCluster),
			Service:         get(EnvECSService),
			Output:          getDefault(EnvMetricsOutput, DefaultMetricsOutput),
			Period:          DefaultMetricsPeriod,
			Window:          DefaultMetricsWindow,
			DefinitionsPath: get(EnvMetricsDefinitions),
		},
		Telemetry: TelemetryConfig{
			TextfilePath: get(EnvPromTextfile),
		},
		Audit: AuditConfig{
			HistoryDir:      get(EnvHistoryDir),
			WebhookURL:      get(EnvWebhookURL),
			WebhookAttempts: DefaultWebhookAttempts,
		},
	}

	if raw := cfg.Audit.WebhookURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, dserrors.ConfigError{
				Field:      EnvWebhookURL,
				Value:      raw,
				Message:    "must be an absolute http(s) URL",
				Suggestion: "Unset AWSOPS_WEBHOOK_URL to disable rotation notifications",
			}
		}
	}

	if raw := get(EnvWebhookAttempts); raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil || attempts < 1 || attempts > maxWebhookAttempts {
			return nil, dserrors.ConfigError{
				Field:      EnvWebhookAttempts,
				Value:      raw,
				Message:    fmt.Sprintf("must be a whole number from 1 to %d", maxWebhookAttempts),
				Suggestion: "Leave unset to send each notification once",
			}
		}
		cfg.Audit.WebhookAttempts = attempts
	}

	if raw := get(EnvMetricsPeriod); raw != "" {
		period, err := parsePeriod(raw)
		if err != nil {
			return nil, err
		}
		cfg.Metrics.Period = period
	}

	if raw := get(EnvMetricsWindow); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			return nil, dserrors.ConfigError{
				Field:      EnvMetricsWindow,
				Value:      raw,
				Message:    "must be a positive duration",
				Suggestion: "Use Go duration syntax, e.g. 24h or 90m",
			}
		}
		cfg.Metrics.Window = window
	}

	start, end := get(EnvMetricsStart), get(EnvMetricsEnd)
	if start != "" || end != "" {
		if start == "" || end == "" {
			return nil, dserrors.ConfigError{
				Field:      EnvMetricsStart + "/" + EnvMetricsEnd,
				Message:    "a fixed window needs both a start and an end",
				Suggestion: "Set both variables, or neither to use the rolling METRICS_WINDOW",
			}
		}
		s, err := parseTimestamp(EnvMetricsStart, start)
		if err != nil {
			return nil, err
		}
		e, err := parseTimestamp(EnvMetricsEnd, end)
		if err != nil {
			return nil, err
		}
		if !e.After(s) {
			return nil, dserrors.ConfigError{
				Field:   EnvMetricsEnd,
				Value:   end,
				Message: fmt.Sprintf("must be after %s (%s)", EnvMetricsStart, start),
			}
		}
		cfg.Metrics.Start, cfg.Metrics.End = s, e
	}

	return cfg, nil
}

// ValidateRotation checks the variables the rotate command cannot run without
func (c *Config) ValidateRotation() error {
	required := []struct {
		name  string
		value string
	}{
		{EnvIAMUserName, c.Rotation.UserName},
		{EnvAccessKeyID, c.AWS.AccessKeyID},
		{EnvSecretAccessKey, c.AWS.SecretAccessKey},
		{EnvGitHubToken, c.GitHub.Token},
		{EnvGitHubRepository, c.GitHub.Repository},
	}
	for _, r := range required {
		if r.value == "" {
			return dserrors.MissingEnv(r.name)
		}
	}

	if c.GitHub.Owner() == "" || c.GitHub.Repo() == "" || strings.Count(c.GitHub.Repository, "/") != 1 {
		return dserrors.ConfigError{
			Field:      EnvGitHubRepository,
			Value:      c.GitHub.Repository,
			Message:    "must be in owner/name form",
			Suggestion: "In GitHub Actions this is set automatically; elsewhere use e.g. acme/deploy",
		}
	}
	if c.Rotation.AccessKeySecretName == c.Rotation.SecretKeySecretName {
		return dserrors.ConfigError{
			Field:   EnvSecretKeySecret,
			Value:   c.Rotation.SecretKeySecretName,
			Message: "the access key id and secret access key must go to different secrets",
		}
	}
	return nil
}

// ValidateMetrics checks the variables the metrics command cannot run without
func (c *Config) ValidateMetrics() error {
	if c.Metrics.Cluster == "" {
		return dserrors.MissingEnv(EnvECSCluster)
	}
	if c.Metrics.Service == "" {
		return dserrors.MissingEnv(EnvECSService)
	}
	return nil
}

func parsePeriod(raw string) (time.Duration, error) {
	// CloudWatch takes the period as an int32 count of seconds.
	seconds, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || seconds <= 0 || seconds%60 != 0 {
		return 0, dserrors.ConfigError{
			Field:      EnvMetricsPeriod,
			Value:      raw,
			Message:    "must be a positive multiple of 60 seconds",
			Suggestion: "Use a multiple of 60, e.g. 3600",
		}
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseTimestamp(field, raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, dserrors.ConfigError{
		Field:      field,
		Value:      raw,
		Message:    "not a valid timestamp",
		Suggestion: "Use RFC3339, e.g. 2025-10-05T00:00:00Z (values without a zone are UTC)",
	}
}
