// Package common provides shared utilities for Quill
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Quill
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	GitHub      GitHubConfig  `toml:"github"`
	Gemini      GeminiConfig  `toml:"gemini"`
	Auth        AuthConfig    `toml:"auth"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	FrontendURL string `toml:"frontend_url"` // login redirects land here
}

// StorageConfig holds storage backend configuration.
// Backend selects between "memory" (single-process, dev/test) and
// "surrealdb" (shared, production).
type StorageConfig struct {
	Backend   string `toml:"backend"`
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// GitHubConfig holds GitHub App and OAuth configuration
type GitHubConfig struct {
	AppID         string `toml:"app_id"`
	AppName       string `toml:"app_name"` // public app slug, used for the install URL
	PrivateKey    string `toml:"private_key"`
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	WebhookSecret string `toml:"webhook_secret"`
	APIBaseURL    string `toml:"api_base_url"`
	OAuthBaseURL  string `toml:"oauth_base_url"`
	RateLimit     int    `toml:"rate_limit"`
	Timeout       string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GitHubConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// PrivateKeyPEM returns the App private key with escaped newlines normalized.
// Keys injected through environment variables arrive with literal "\n" sequences.
func (c *GitHubConfig) PrivateKeyPEM() []byte {
	return []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n"))
}

// InstallURL returns the public GitHub App installation URL.
func (c *GitHubConfig) InstallURL() string {
	return fmt.Sprintf("https://github.com/apps/%s/installations/new", c.AppName)
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// AuthConfig holds token and session lifetime configuration.
type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	TokenExpiry     string `toml:"token_expiry"`      // bearer token TTL, default "168h" (7 days)
	RefreshAgeLimit string `toml:"refresh_age_limit"` // hard refresh ceiling, default "720h" (30 days)
	SessionTTL      string `toml:"session_ttl"`       // server-side session TTL, default "168h"
	StateTTL        string `toml:"state_ttl"`         // OAuth state cookie lifetime, default "10m"
}

// GetTokenExpiry parses and returns the bearer token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 168 * time.Hour
	}
	return d
}

// GetRefreshAgeLimit parses and returns the refresh age ceiling.
func (c *AuthConfig) GetRefreshAgeLimit() time.Duration {
	d, err := time.ParseDuration(c.RefreshAgeLimit)
	if err != nil {
		return 720 * time.Hour
	}
	return d
}

// GetSessionTTL parses and returns the session lifetime.
func (c *AuthConfig) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 168 * time.Hour
	}
	return d
}

// GetStateTTL parses and returns the OAuth state cookie lifetime.
func (c *AuthConfig) GetStateTTL() time.Duration {
	d, err := time.ParseDuration(c.StateTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			FrontendURL: "http://localhost:3000",
		},
		Storage: StorageConfig{
			Backend:   "memory",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "quill",
			Database:  "quill",
			Username:  "root",
			Password:  "root",
		},
		GitHub: GitHubConfig{
			APIBaseURL:   "https://api.github.com",
			OAuthBaseURL: "https://github.com",
			RateLimit:    10,
			Timeout:      "10s",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "60s",
		},
		Auth: AuthConfig{
			JWTSecret:       "dev-jwt-secret-change-in-production",
			TokenExpiry:     "168h",
			RefreshAgeLimit: "720h",
			SessionTTL:      "168h",
			StateTTL:        "10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	// Normalize the storage backend selector
	validateStorageBackend(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUILL_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("QUILL_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("QUILL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if url := os.Getenv("QUILL_FRONTEND_URL"); url != "" {
		config.Server.FrontendURL = url
	}

	if level := os.Getenv("QUILL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("QUILL_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("QUILL_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("QUILL_STORAGE_NAMESPACE"); v != "" {
		config.Storage.Namespace = v
	}
	if v := os.Getenv("QUILL_STORAGE_DATABASE"); v != "" {
		config.Storage.Database = v
	}
	if v := os.Getenv("QUILL_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("QUILL_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// GitHub App / OAuth overrides
	if v := os.Getenv("QUILL_GITHUB_APP_ID"); v != "" {
		config.GitHub.AppID = v
	}
	if v := os.Getenv("QUILL_GITHUB_APP_NAME"); v != "" {
		config.GitHub.AppName = v
	}
	if v := os.Getenv("QUILL_GITHUB_PRIVATE_KEY"); v != "" {
		config.GitHub.PrivateKey = v
	}
	if v := os.Getenv("QUILL_GITHUB_CLIENT_ID"); v != "" {
		config.GitHub.ClientID = v
	}
	if v := os.Getenv("QUILL_GITHUB_CLIENT_SECRET"); v != "" {
		config.GitHub.ClientSecret = v
	}
	if v := os.Getenv("QUILL_GITHUB_WEBHOOK_SECRET"); v != "" {
		config.GitHub.WebhookSecret = v
	}

	// Gemini key resolution (provider-standard names accepted)
	for _, name := range []string{"QUILL_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Gemini.APIKey = v
			break
		}
	}

	// Auth overrides
	if v := os.Getenv("QUILL_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("QUILL_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("QUILL_AUTH_SESSION_TTL"); v != "" {
		config.Auth.SessionTTL = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// GitHubAppConfigured reports whether the GitHub App credentials needed for
// installation-token minting are present.
func (c *Config) GitHubAppConfigured() bool {
	return c.GitHub.AppID != "" && c.GitHub.PrivateKey != ""
}

// OAuthConfigured reports whether the GitHub OAuth client credentials are present.
func (c *Config) OAuthConfigured() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// validateStorageBackend ensures Backend is "memory" or "surrealdb", defaulting to "memory".
func validateStorageBackend(config *Config) {
	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend != "memory" && backend != "surrealdb" {
		backend = "memory"
	}
	config.Storage.Backend = backend
}
