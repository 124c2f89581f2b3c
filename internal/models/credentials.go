package models

import "time"

// AppAssertion is a short-lived, self-signed proof of the backend's identity
// as a registered GitHub App. Minted fresh for every installation-token
// request and never persisted.
type AppAssertion struct {
	Token     string    `json:"-"`
	AppID     string    `json:"app_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the assertion is no longer usable at the given time.
func (a AppAssertion) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// InstallationToken is a credential scoped to one GitHub App installation.
// Any holder can act on behalf of the installation until expiry, so it is
// minted per request, used once, and discarded. Never persisted.
type InstallationToken struct {
	Token          string    `json:"-"`
	InstallationID int64     `json:"installation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer usable at the given time.
func (t InstallationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserCredential is a user-scoped OAuth access token obtained from the code
// exchange. Distinct from InstallationToken so the two can never be passed
// where the other is expected.
type UserCredential struct {
	Token string `json:"-"`
	Scope string `json:"scope,omitempty"`
}

// UserTokenClaims is the verified content of a bearer credential.
type UserTokenClaims struct {
	Subject        string    `json:"subject"`
	InstallationID int64     `json:"installation_id,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Age returns how long ago the token was issued.
func (c UserTokenClaims) Age(now time.Time) time.Duration {
	return now.Sub(c.IssuedAt)
}
