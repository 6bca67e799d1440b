package commands

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/systmms/awsops/internal/awsclient"
	"github.com/systmms/awsops/internal/config"
	"github.com/systmms/awsops/internal/ecsmetrics"
	"github.com/systmms/awsops/internal/ghsecrets"
	"github.com/systmms/awsops/internal/rotation"
	"github.com/systmms/awsops/internal/telemetry"
)

// Deps constructs the external clients the commands talk to
type Deps struct {
	// Lookup reads environment variables; nil means os.LookupEnv.
	Lookup config.LookupFunc
	// Now is the clock used for rolling metric windows and telemetry.
	Now func() time.Time
	// Stderr receives log output; nil means os.Stderr.
	Stderr io.Writer

	IAM        func(ctx context.Context, cfg *config.Config) (rotation.IAMAPI, error)
	CloudWatch func(ctx context.Context, cfg *config.Config) (ecsmetrics.CloudWatchAPI, error)
	STS        func(ctx context.Context, cfg *config.Config) (awsclient.STSAPI, error)
	Secrets    func(cfg *config.Config) (rotation.SecretStore, error)
}

// DefaultDeps returns the production wiring: real AWS SDK clients and the
// GitHub REST API.
func DefaultDeps() *Deps {
	return &Deps{
		Lookup: os.LookupEnv,
		Now:    time.Now,
		Stderr: os.Stderr,
		IAM: func(ctx context.Context, cfg *config.Config) (rotation.IAMAPI, error) {
			awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS)
			if err != nil {
				return nil, err
			}
			return awsclient.NewIAM(awsCfg), nil
		},
		CloudWatch: func(ctx context.Context, cfg *config.Config) (ecsmetrics.CloudWatchAPI, error) {
			awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS)
			if err != nil {
				return nil, err
			}
			return awsclient.NewCloudWatch(awsCfg), nil
		},
		STS: func(ctx context.Context, cfg *config.Config) (awsclient.STSAPI, error) {
			awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS)
			if err != nil {
				return nil, err
			}
			return awsclient.NewSTS(awsCfg), nil
		},
		Secrets: func(cfg *config.Config) (rotation.SecretStore, error) {
			client, err := ghsecrets.NewClient(cfg.GitHub, &http.Client{Timeout: 30 * time.Second}, cfg.Logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

func (d *Deps) lookup() config.LookupFunc {
	if d.Lookup == nil {
		return os.LookupEnv
	}
	return d.Lookup
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) stderr() io.Writer {
	if d.Stderr == nil {
		return os.Stderr
	}
	return d.Stderr
}

// loadTelemetry picks up the metrics earlier runs left in the textfile. An
// unreadable textfile is replaced rather than failing the command.
func loadTelemetry(cfg *config.Config) *telemetry.RunMetrics {
	metrics, err := telemetry.Load(cfg.Telemetry.TextfilePath)
	if err != nil {
		cfg.Logger.Warn("%v; starting from empty run metrics", err)
		return telemetry.NewRunMetrics()
	}
	return metrics
}

// writeTelemetry flushes run metrics to the configured textfile. Failing to
// write them never fails the command.
func writeTelemetry(cfg *config.Config, metrics *telemetry.RunMetrics) {
	if err := metrics.WriteTextfile(cfg.Telemetry.TextfilePath); err != nil {
		cfg.Logger.Warn("%v", err)
		return
	}
	if cfg.Telemetry.TextfilePath != "" {
		cfg.Logger.Debug("Wrote run metrics to %s", cfg.Telemetry.TextfilePath)
	}
}
