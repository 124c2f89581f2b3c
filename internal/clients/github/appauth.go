package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quillhq/quill/internal/models"
)

const (
	// assertionLifetime keeps exp-iat at GitHub's 10-minute maximum.
	assertionLifetime = 10 * time.Minute

	// assertionBackdate shifts iat into the past to absorb clock drift
	// between this host and GitHub.
	assertionBackdate = 60 * time.Second

	// mintAttempts bounds retries of the installation token endpoint.
	mintAttempts = 3
)

// MintAssertion signs a short-lived app JWT proving app identity. A fresh
// assertion is built per call; assertions are never cached.
func (c *Client) MintAssertion() (*models.AppAssertion, error) {
	if c.appID == "" {
		return nil, &ConfigurationError{Reason: "app_id is not configured"}
	}
	if len(c.privateKey) == 0 {
		return nil, &ConfigurationError{Reason: "private key is not configured"}
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.privateKey)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("failed to parse RSA private key: %v", err)}
	}

	issuedAt := time.Now().Add(-assertionBackdate)
	expiresAt := issuedAt.Add(assertionLifetime)

	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    c.appID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("failed to sign assertion: %v", err)}
	}

	return &models.AppAssertion{
		Token:     signed,
		AppID:     c.appID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// CreateInstallationToken exchanges the app identity for an installation
// access token. Tokens are minted fresh on every call and never cached, so a
// revoked installation stops working on the next request. GitHub-side
// failures (5xx) are retried with backoff; anything else propagates as an
// UpstreamAuthError.
func (c *Client) CreateInstallationToken(ctx context.Context, installationID int64) (*models.InstallationToken, error) {
	assertion, err := c.MintAssertion()
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < mintAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		status, body, err := c.apiRequest(ctx, http.MethodPost, path, "Bearer "+assertion.Token, nil)
		if err != nil {
			lastErr = err
			continue
		}

		if status == http.StatusCreated {
			var resp struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expires_at"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("failed to decode token response: %w", err)
			}
			if resp.Token == "" {
				return nil, &UpstreamAuthError{StatusCode: status, Body: "token response contained no token"}
			}
			c.logger.Debug().
				Int64("installation_id", installationID).
				Time("expires_at", resp.ExpiresAt).
				Msg("Installation token minted")
			return &models.InstallationToken{
				Token:          resp.Token,
				InstallationID: installationID,
				ExpiresAt:      resp.ExpiresAt,
			}, nil
		}

		authErr := &UpstreamAuthError{StatusCode: status, Body: truncate(string(body), 512)}
		if !authErr.Retryable() {
			return nil, authErr
		}
		lastErr = authErr
		c.logger.Warn().
			Int("status", status).
			Int("attempt", attempt+1).
			Int64("installation_id", installationID).
			Msg("Installation token mint failed, retrying")
	}

	return nil, lastErr
}
