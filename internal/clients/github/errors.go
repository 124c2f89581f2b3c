package github

import (
	"fmt"
	"net/http"
)

// APIError represents a GitHub API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsNotFound reports whether the API returned 404 for the endpoint.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ConfigurationError reports missing or undecodable App credentials. Fatal at
// first use; never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("GitHub App configuration error: %s", e.Reason)
}

// UpstreamAuthError reports that GitHub rejected a credential mint or
// exchange. The status distinguishes a bad request from GitHub being down.
type UpstreamAuthError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("GitHub rejected token request (status: %d): %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is on GitHub's side and worth
// retrying with backoff.
func (e *UpstreamAuthError) Retryable() bool {
	return e.StatusCode >= 500
}

// OAuthError reports a failed OAuth code exchange or identity fetch.
type OAuthError struct {
	Code        string // machine-readable error code from GitHub, if any
	Description string
}

func (e *OAuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("GitHub OAuth error: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("GitHub OAuth error: %s", e.Description)
}

// ForbiddenRepoError reports that the installation cannot reach a repository.
type ForbiddenRepoError struct {
	Owner string
	Repo  string
}

func (e *ForbiddenRepoError) Error() string {
	return fmt.Sprintf("no access to repository %s/%s: ensure the GitHub App is installed on it with write permission", e.Owner, e.Repo)
}

// RepoParseError reports repository input that is neither owner/repo nor a
// GitHub URL.
type RepoParseError struct {
	Input string
}

func (e *RepoParseError) Error() string {
	return fmt.Sprintf("invalid repository %q: use 'owner/repo' or a full GitHub URL", e.Input)
}
