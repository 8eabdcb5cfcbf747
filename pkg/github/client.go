package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 10 * time.Second
	acceptHeader   = "application/vnd.github+json"
)

// Client is a minimal GitHub REST client scoped to the calls policy
// enforcement needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       *AppAuth
	timeout    time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for GitHub Enterprise
// and tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a GitHub App client. Metrics may be nil.
func NewClient(auth *AppAuth, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		auth:       auth,
		timeout:    defaultTimeout,
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInstallationToken exchanges an app JWT for an installation
// access token scoped to one installation.
func (c *Client) CreateInstallationToken(ctx context.Context, installationID int64) (string, error) {
	appJWT, err := c.auth.AppJWT()
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)
	body, err := c.do(ctx, "create_installation_token", http.MethodPost, path, "Bearer "+appJWT, nil)
	if err != nil {
		return "", err
	}

	var response struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode installation token response: %w", err)
	}
	if response.Token == "" {
		return "", fmt.Errorf("installation token response carried no token")
	}
	return response.Token, nil
}

// SetRepositoryVisibility updates a repository's private flag.
func (c *Client) SetRepositoryVisibility(ctx context.Context, token, owner, repo string, private bool) error {
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	payload := map[string]bool{"private": private}
	_, err := c.do(ctx, "set_repository_visibility", http.MethodPatch, path, "Bearer "+token, payload)
	return err
}

// RemoveCollaborator removes a member's collaborator access from a
// repository.
func (c *Client) RemoveCollaborator(ctx context.Context, token, owner, repo, username string) error {
	path := fmt.Sprintf("/repos/%s/%s/collaborators/%s", owner, repo, username)
	_, err := c.do(ctx, "remove_collaborator", http.MethodDelete, path, "Bearer "+token, nil)
	return err
}

func (c *Client) do(ctx context.Context, operation, method, path, authorization string, payload interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", authorization)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.record(operation, "error", duration)
		return nil, fmt.Errorf("github request %s failed: %w", operation, err)
	}
	defer resp.Body.Close()

	c.record(operation, strconv.Itoa(resp.StatusCode), duration)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("github request rejected")
		return nil, fmt.Errorf("github %s returned status %d", operation, resp.StatusCode)
	}

	return body, nil
}

func (c *Client) record(operation, status string, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.GitHubRequestsTotal.WithLabelValues(operation, status).Inc()
	c.metrics.GitHubRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
