package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/rotation"
	"github.com/systmms/awsops/internal/telemetry"
)

func NewRotateCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the IAM user's access key and update GitHub Actions secrets",
		Long: `Replace the access key of IAM_USER_NAME and store the new pair as encrypted
GitHub Actions secrets in GITHUB_REPOSITORY.

The command refuses to run (exit status 2) when the user already has two
access keys. Otherwise it deactivates the current active key, creates a new
one, and uploads AWS_ACCESS_KEY_ID then AWS_SECRET_ACCESS_KEY sealed to the
repository's public key.

Required environment:
  IAM_USER_NAME, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
  GITHUB_TOKEN, GITHUB_REPOSITORY`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := loadTelemetry(cfg)
			start := deps.now()

			result, err := runRotate(cmd.Context(), cfg, deps)
			if isConfigError(err) {
				return err
			}

			finished := deps.now()
			metrics.RecordRotation(rotationResult(err), finished)
			metrics.ObserveDuration("rotate", finished.Sub(start))
			writeTelemetry(cfg, metrics)
			audit(cmd.Context(), cfg, start, finished, result, err)
			return err
		},
	}

	return cmd
}

func runRotate(ctx context.Context, cfg *config.Config, deps *Deps) (*rotation.Result, error) {
	if err := cfg.ValidateRotation(); err != nil {
		return nil, err
	}

	iamClient, err := deps.IAM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := deps.Secrets(cfg)
	if err != nil {
		return nil, err
	}

	rotator := rotation.NewRotator(iamClient, store, cfg.Rotation, cfg.Logger)
	result, err := rotator.Rotate(ctx)
	if result != nil && result.DeactivationErr != nil {
		cfg.Logger.Warn("Access key %s is still active; the next rotation will refuse to run until it is deleted",
			result.Plan.Deactivate.ID)
	}
	if err != nil {
		return result, err
	}

	cfg.Logger.Debug("New access key %s stored in %v", result.NewKeyID, result.Secrets)
	return result, nil
}

func isConfigError(err error) bool {
	var cfgErr dserrors.ConfigError
	return errors.As(err, &cfgErr)
}

func rotationResult(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultSuccess
	case dserrors.IsGuard(err):
		return telemetry.ResultGuard
	default:
		return telemetry.ResultFailure
	}
}
