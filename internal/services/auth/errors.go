package auth

import (
	"fmt"
	"time"
)

// Token verification failure reasons carried by InvalidTokenError. The reason
// is client-safe and ends up in 401 response bodies.
const (
	ReasonMalformed = "malformed"
	ReasonSignature = "signature"
	ReasonExpired   = "expired"
)

// InvalidTokenError reports a bearer token that failed verification.
type InvalidTokenError struct {
	Reason string // one of ReasonMalformed, ReasonSignature, ReasonExpired
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

// TooOldError reports a refresh attempt on a token past the refresh age
// ceiling. The holder has to log in again; a lost token cannot be renewed
// forever.
type TooOldError struct {
	IssuedAt time.Time
	Limit    time.Duration
}

func (e *TooOldError) Error() string {
	return fmt.Sprintf("token issued at %s exceeds the %s refresh limit, log in again",
		e.IssuedAt.Format(time.RFC3339), e.Limit)
}

// UnauthorizedError reports a request that failed authentication. Reason is
// client-safe; credentials never appear in it.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// ForbiddenError reports an authenticated caller without the privilege an
// operation requires.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// CsrfError reports an OAuth callback whose state does not match the value
// issued alongside the login redirect.
type CsrfError struct{}

func (e *CsrfError) Error() string {
	return "state parameter missing or mismatched"
}

// InstallationRequiredError reports a caller whose identity carries no App
// installation. Repository operations are impossible until the App is
// installed.
type InstallationRequiredError struct {
	Username string
}

func (e *InstallationRequiredError) Error() string {
	return "no installation: install the GitHub App to access repositories"
}

// ValidationError reports unusable caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return "invalid request: " + e.Reason
}

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}
