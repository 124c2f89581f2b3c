package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/oauth2"

	"github.com/quillhq/quill/internal/models"
)

// minTokenLength is the shortest credential accepted before a network call.
const minTokenLength = 10

// tokenFormat matches the lexical shape of GitHub access tokens.
var tokenFormat = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// GenerateState returns a random URL-safe CSRF state for the OAuth flow.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateTokenFormat rejects strings that cannot be GitHub tokens, avoiding
// a round-trip that would forward a malformed credential upstream.
func ValidateTokenFormat(token string) error {
	if len(token) < minTokenLength || !tokenFormat.MatchString(token) {
		return &OAuthError{Description: "access token failed format validation"}
	}
	return nil
}

// oauthConfig builds the endpoint configuration for the web flow.
func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Scopes:       c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.oauthBaseURL + "/login/oauth/authorize",
			TokenURL: c.oauthBaseURL + "/login/oauth/access_token",
		},
	}
}

// AuthorizeURL builds the GitHub OAuth authorize URL carrying state.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauthConfig().AuthCodeURL(state)
}

// ExchangeCode trades an OAuth authorization code for a user credential.
// The exchange is performed directly rather than through oauth2.Config so
// GitHub's error code and description survive into the returned OAuthError.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.UserCredential, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, &ConfigurationError{Reason: "OAuth client credentials are not configured"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{
		"code":          {code},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthBaseURL+"/login/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Msg("GitHub OAuth code exchange")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &OAuthError{Description: fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 256))}
	}

	var tokenData struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		Scope            string `json:"scope"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return nil, &OAuthError{Description: "failed to parse token response"}
	}
	if tokenData.Error != "" {
		return nil, &OAuthError{Code: tokenData.Error, Description: tokenData.ErrorDescription}
	}
	if tokenData.AccessToken == "" {
		return nil, &OAuthError{Description: "token response contained no access token"}
	}

	return &models.UserCredential{
		Token: tokenData.AccessToken,
		Scope: tokenData.Scope,
	}, nil
}

// FetchIdentity resolves the credential's owning GitHub account.
func (c *Client) FetchIdentity(ctx context.Context, cred *models.UserCredential) (*models.GitHubProfile, error) {
	if cred == nil || cred.Token == "" {
		return nil, &OAuthError{Description: "no credential supplied"}
	}
	if err := ValidateTokenFormat(cred.Token); err != nil {
		return nil, err
	}

	var ghUser struct {
		Login       string `json:"login"`
		ID          int64  `json:"id"`
		Email       string `json:"email"`
		Name        string `json:"name"`
		AvatarURL   string `json:"avatar_url"`
		Company     string `json:"company"`
		PublicRepos int    `json:"public_repos"`
	}
	if err := c.apiGet(ctx, "/user", "token "+cred.Token, &ghUser); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &OAuthError{Description: fmt.Sprintf("identity fetch failed (status: %d)", apiErr.StatusCode)}
		}
		return nil, err
	}
	if ghUser.Login == "" {
		return nil, &OAuthError{Description: "identity response contained no login"}
	}

	return &models.GitHubProfile{
		Login:       ghUser.Login,
		ID:          ghUser.ID,
		Email:       ghUser.Email,
		Name:        ghUser.Name,
		AvatarURL:   ghUser.AvatarURL,
		Company:     ghUser.Company,
		PublicRepos: ghUser.PublicRepos,
	}, nil
}
