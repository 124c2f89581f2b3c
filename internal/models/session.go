package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Session is a server-tracked record binding an opaque session identifier to a
// username and its GitHub credentials, independent of the stateless bearer token.
// At most one live session exists per username.
type Session struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	AccessToken    string    `json:"-"`
	InstallationID int64     `json:"installation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// IsExpired reports whether the session has passed its expiry at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTLRemaining returns the time left until expiry, or zero when already expired.
func (s *Session) TTLRemaining(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// NewSessionID returns a fresh opaque session identifier: 32 random bytes,
// base64url without padding. Unguessable, so possession of the ID is the
// only proof of session ownership.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
