package ghsecrets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/logging"
)

// Client talks to the Actions secrets endpoints of one repository
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	logger *logging.Logger
}

// NewClient creates a client for cfg.Repository. httpClient may be nil.
func NewClient(cfg config.GitHubConfig, httpClient *http.Client, logger *logging.Logger) (*Client, error) {
	gh := github.NewClient(httpClient).WithAuthToken(cfg.Token)

	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, dserrors.ConfigError{
				Field:   config.EnvGitHubAPIURL,
				Value:   cfg.APIURL,
				Message: "not a valid URL",
			}
		}
		gh.BaseURL = base
	}

	return &Client{
		gh:     gh,
		owner:  cfg.Owner(),
		repo:   cfg.Repo(),
		logger: logger,
	}, nil
}

// Repository returns owner/name
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// PublicKey fetches the repository's current secret-encryption key.
// The result must not be cached across runs.
func (c *Client) PublicKey(ctx context.Context) (*PublicKey, error) {
	key, _, err := c.gh.Actions.GetRepoPublicKey(ctx, c.owner, c.repo)
	if err != nil {
		return nil, dserrors.ProviderError("github", "get repository public key", err)
	}
	if key.GetKeyID() == "" || key.GetKey() == "" {
		return nil, fmt.Errorf("github returned an incomplete public key for %s", c.Repository())
	}

	c.logger.Debug("Repository %s public key id %s", c.Repository(), key.GetKeyID())
	return &PublicKey{KeyID: key.GetKeyID(), Key: key.GetKey()}, nil
}

// PutSecret creates or replaces a repository secret
func (c *Client) PutSecret(ctx context.Context, secret EncryptedSecret) error {
	resp, err := c.gh.Actions.CreateOrUpdateRepoSecret(ctx, c.owner, c.repo, &github.EncryptedSecret{
		Name:           secret.Name,
		KeyID:          secret.KeyID,
		EncryptedValue: secret.EncryptedValue,
	})
	if err != nil {
		return dserrors.ProviderError("github", "update secret "+secret.Name, err)
	}

	// 201 on create, 204 on update
	action := "Updated"
	if resp != nil && resp.StatusCode == http.StatusCreated {
		action = "Created"
	}
	c.logger.Debug("%s secret %s in %s", action, secret.Name, c.Repository())
	return nil
}
