// Package rotation replaces the access key of an IAM user and publishes the
// new pair as GitHub Actions secrets.
//
// A run lists the user's keys, refuses to continue if MaxKeys or more
// exist, deactivates the current active key, creates a new one, and
// uploads the new id and secret sealed to the repository's public key.
// There is no rollback: a failure after deactivation leaves the user with
// no active key, which fails closed.
package rotation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/ghsecrets"
	"github.com/systmms/awsops/internal/logging"
	"github.com/systmms/awsops/internal/secure"
)

// IAMAPI is the subset of *iam.Client used for rotation
type IAMAPI interface {
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
}

// SecretStore receives the sealed credentials
type SecretStore interface {
	PublicKey(ctx context.Context) (*ghsecrets.PublicKey, error)
	PutSecret(ctx context.Context, secret ghsecrets.EncryptedSecret) error
}

// Result summarises a completed run
type Result struct {
	Plan *Plan
	// Deactivated is the id of the key flipped to Inactive, if any.
	Deactivated string
	// DeactivationErr is set when deactivation failed; the run carried on.
	DeactivationErr error
	NewKeyID        string
	// Secrets lists the secret names written, in upload order.
	Secrets []string
}

// Rotator performs one rotation for one IAM user
type Rotator struct {
	iam    IAMAPI
	store  SecretStore
	cfg    config.RotationConfig
	logger *logging.Logger
}

// NewRotator wires a rotator to its clients
func NewRotator(iamClient IAMAPI, store SecretStore, cfg config.RotationConfig, logger *logging.Logger) *Rotator {
	return &Rotator{
		iam:    iamClient,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// ListKeys returns every access key of the user
func (r *Rotator) ListKeys(ctx context.Context) ([]AccessKeyRecord, error) {
	var keys []AccessKeyRecord

	paginator := iam.NewListAccessKeysPaginator(r.iam, &iam.ListAccessKeysInput{
		UserName: aws.String(r.cfg.UserName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dserrors.ProviderError("iam", "list access keys", err)
		}
		for _, md := range page.AccessKeyMetadata {
			keys = append(keys, AccessKeyRecord{
				ID:        aws.ToString(md.AccessKeyId),
				Status:    KeyStatus(md.Status),
				CreatedAt: aws.ToTime(md.CreateDate),
			})
		}
	}
	return keys, nil
}

// Rotate runs the full rotation. A *GuardError is returned, with no
// changes made, when the user already has MaxKeys keys.
func (r *Rotator) Rotate(ctx context.Context) (*Result, error) {
	r.logger.Info("Listing current AWS access keys...")
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Found %d access keys.", len(keys))

	plan, err := NewPlan(r.cfg.UserName, keys)
	if err != nil {
		return nil, err
	}
	result := &Result{Plan: plan}

	if plan.Deactivate != nil {
		if err := r.deactivate(ctx, plan.Deactivate.ID); err != nil {
			// The next run's guard catches the leftover key.
			r.logger.Warn("Failed to deactivate access key %s: %v", plan.Deactivate.ID, err)
			result.DeactivationErr = err
		} else {
			r.logger.Info("Deactivated old access key: %s", plan.Deactivate.ID)
			result.Deactivated = plan.Deactivate.ID
		}
	} else {
		r.logger.Info("No active access key to deactivate")
	}

	r.logger.Info("Creating new AWS key...")
	keyID, secret, err := r.createKey(ctx)
	if err != nil {
		return result, err
	}
	defer secret.Destroy()
	result.NewKeyID = keyID
	r.logger.Debug("Created access key %s", keyID)

	r.logger.Info("Getting GitHub repo public key for secrets...")
	pub, err := r.store.PublicKey(ctx)
	if err != nil {
		return result, err
	}
	sealer, err := ghsecrets.NewSealer(*pub)
	if err != nil {
		return result, err
	}

	r.logger.Info("Encrypting and storing new %s in GitHub...", r.cfg.AccessKeySecretName)
	if err := r.publish(ctx, sealer, r.cfg.AccessKeySecretName, []byte(keyID)); err != nil {
		return result, err
	}
	result.Secrets = append(result.Secrets, r.cfg.AccessKeySecretName)

	r.logger.Info("Encrypting and storing new %s in GitHub...", r.cfg.SecretKeySecretName)
	err = secret.With(func(plaintext []byte) error {
		return r.publish(ctx, sealer, r.cfg.SecretKeySecretName, plaintext)
	})
	if err != nil {
		return result, err
	}
	result.Secrets = append(result.Secrets, r.cfg.SecretKeySecretName)

	r.logger.Info("Credential rotation complete.")
	return result, nil
}

func (r *Rotator) deactivate(ctx context.Context, keyID string) error {
	_, err := r.iam.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(r.cfg.UserName),
		AccessKeyId: aws.String(keyID),
		Status:      iamtypes.StatusTypeInactive,
	})
	if err != nil {
		return dserrors.ProviderError("iam", "deactivate access key", err)
	}
	return nil
}

func (r *Rotator) createKey(ctx context.Context) (string, *secure.SecureBuffer, error) {
	out, err := r.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(r.cfg.UserName),
	})
	if err != nil {
		return "", nil, dserrors.ProviderError("iam", "create access key", err)
	}
	if out == nil || out.AccessKey == nil || aws.ToString(out.AccessKey.AccessKeyId) == "" || aws.ToString(out.AccessKey.SecretAccessKey) == "" {
		return "", nil, fmt.Errorf("iam returned no access key for user %s", r.cfg.UserName)
	}

	secret, err := secure.NewSecureString(aws.ToString(out.AccessKey.SecretAccessKey))
	if err != nil {
		return "", nil, fmt.Errorf("protect new secret access key: %w", err)
	}
	return aws.ToString(out.AccessKey.AccessKeyId), secret, nil
}

func (r *Rotator) publish(ctx context.Context, sealer *ghsecrets.Sealer, name string, value []byte) error {
	enc, err := sealer.Seal(name, value)
	if err != nil {
		return err
	}
	return r.store.PutSecret(ctx, enc)
}
