// Package awsclient builds the AWS SDK clients awsops talks to.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
)

// LoadConfig resolves the SDK configuration for the configured region. When
// explicit caller keys are present they take precedence over the default
// credential chain.
func LoadConfig(ctx context.Context, cfg config.AWSConfig, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	if cfg.HasStaticCredentials() {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	configOpts = append(configOpts, optFns...)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewIAM creates an IAM client
func NewIAM(cfg aws.Config) *iam.Client {
	return iam.NewFromConfig(cfg)
}

// NewCloudWatch creates a CloudWatch client
func NewCloudWatch(cfg aws.Config) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(cfg)
}

// NewSTS creates an STS client
func NewSTS(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

// STSAPI is the part of the STS client used for the caller preflight
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity describes the principal behind the configured credentials
type Identity struct {
	Account string
	Arn     string
	UserID  string
}

// CallerIdentity asks STS who the current credentials belong to
func CallerIdentity(ctx context.Context, client STSAPI) (*Identity, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, dserrors.ProviderError("sts", "get caller identity", err)
	}

	return &Identity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}
