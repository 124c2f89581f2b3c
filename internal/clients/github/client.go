// Package github provides a client for the GitHub App, OAuth, and REST APIs
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
)

const (
	DefaultAPIBaseURL   = "https://api.github.com"
	DefaultOAuthBaseURL = "https://github.com"
	DefaultTimeout      = 10 * time.Second
	DefaultRateLimit    = 10 // requests per second

	acceptGitHubJSON = "application/vnd.github.v3+json"
)

// Client implements the GitHubClient interface
type Client struct {
	apiBaseURL   string
	oauthBaseURL string
	appID        string
	appName      string
	privateKey   []byte
	clientID     string
	clientSecret string
	scopes       []string
	httpClient   *http.Client
	logger       *common.Logger
	limiter      *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithAPIBaseURL sets the REST API base URL
func WithAPIBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.apiBaseURL = baseURL
	}
}

// WithOAuthBaseURL sets the OAuth endpoint base URL
func WithOAuthBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.oauthBaseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithScopes sets the OAuth scopes requested at authorization
func WithScopes(scopes ...string) ClientOption {
	return func(c *Client) {
		c.scopes = scopes
	}
}

// NewClient creates a new GitHub client from App configuration
func NewClient(cfg common.GitHubConfig, opts ...ClientOption) *Client {
	c := &Client{
		apiBaseURL:   cfg.APIBaseURL,
		oauthBaseURL: cfg.OAuthBaseURL,
		appID:        cfg.AppID,
		appName:      cfg.AppName,
		privateKey:   cfg.PrivateKeyPEM(),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scopes:       []string{"public_repo", "read:user"},
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}
	if c.apiBaseURL == "" {
		c.apiBaseURL = DefaultAPIBaseURL
	}
	if c.oauthBaseURL == "" {
		c.oauthBaseURL = DefaultOAuthBaseURL
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// InstallURL is the public page where users install the GitHub App.
func (c *Client) InstallURL() string {
	return fmt.Sprintf("https://github.com/apps/%s/installations/new", c.appName)
}

// apiGet performs a rate-limited GET against the REST API, expecting 200.
func (c *Client) apiGet(ctx context.Context, path, authorization string, result interface{}) error {
	status, body, err := c.apiRequest(ctx, http.MethodGet, path, authorization, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &APIError{
			StatusCode: status,
			Message:    truncate(string(body), 512),
			Endpoint:   path,
		}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiRequest performs a rate-limited request against the REST API and returns
// the raw status and body. Callers decide which statuses are acceptable.
func (c *Client) apiRequest(ctx context.Context, method, path, authorization string, payload interface{}) (int, []byte, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", acceptGitHubJSON)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", path).Msg("GitHub API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// truncate bounds response bodies carried inside error values.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Ensure Client implements GitHubClient
var _ interfaces.GitHubClient = (*Client)(nil)
