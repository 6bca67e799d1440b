package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/google/go-github/v66/github"
)

// Exit codes returned by the awsops binary
const (
	ExitFailure = 1
	ExitGuard   = 2
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// MissingEnv builds the ConfigError for an unset required environment variable
func MissingEnv(name string) ConfigError {
	return ConfigError{
		Field:      name,
		Message:    "required environment variable is not set",
		Suggestion: fmt.Sprintf("Export %s before running this command", name),
	}
}

// GuardError reports that the principal already holds too many access keys
// for a rotation to proceed safely.
type GuardError struct {
	Principal string
	Count     int
	Limit     int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("user %s has %d access keys (limit %d): refusing to create another; "+
		"delete the stale key manually before the next rotation", e.Principal, e.Count, e.Limit)
}

// IsGuard reports whether err is, or wraps, a GuardError
func IsGuard(err error) bool {
	var guard *GuardError
	return errors.As(err, &guard)
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if IsGuard(err) {
		return ExitGuard
	}
	return ExitFailure
}

// ProviderError enhances API errors with the operation that failed and a hint
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", provider, operation),
		Details:    err.Error(),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	code := ""
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	errStr := err.Error()

	switch provider {
	case "iam":
		switch code {
		case "AccessDenied", "AccessDeniedException":
			return "Check IAM permissions for iam:ListAccessKeys, iam:UpdateAccessKey and iam:CreateAccessKey"
		case "NoSuchEntity":
			return "Verify IAM_USER_NAME names an existing IAM user"
		case "LimitExceeded":
			return "The user already has the maximum number of access keys. Delete an inactive key"
		case "InvalidClientTokenId", "SignatureDoesNotMatch":
			return "The caller credentials in AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY are invalid or already rotated"
		}

	case "cloudwatch":
		switch code {
		case "AccessDenied", "AccessDeniedException":
			return "Check IAM permissions for cloudwatch:GetMetricStatistics"
		case "InvalidParameterCombination", "InvalidParameterValue":
			return "Check the metric unit/statistic pairs and that the window is not longer than the retention for the period"
		}

	case "github":
		var rateErr *github.RateLimitError
		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
			return "GitHub API rate limit exceeded. Wait for the limit to reset and run again"
		}
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil {
			switch respErr.Response.StatusCode {
			case http.StatusUnauthorized:
				return "GITHUB_TOKEN is invalid or expired"
			case http.StatusForbidden:
				return "GITHUB_TOKEN needs the repo scope (or secrets: write for fine-grained tokens)"
			case http.StatusNotFound:
				return "Verify GITHUB_REPOSITORY is owner/name and the token can see it"
			}
		}

	case "sts":
		if code == "InvalidClientTokenId" || code == "ExpiredToken" {
			return "Configure AWS credentials: set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or AWS_PROFILE"
		}
	}

	if code == "Throttling" || code == "ThrottlingException" || strings.Contains(errStr, "rate limit") {
		return "API rate limit exceeded. Wait a moment and run again"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return ""
}
