// Package auth owns the login lifecycle: OAuth completion, sessions, bearer
// tokens, and the access tiers derived from them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quillhq/quill/internal/models"
)

const (
	// DefaultTokenTTL is the bearer lifetime when configuration does not
	// override it.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// DefaultRefreshAgeLimit caps how old a token may be and still be
	// refreshed.
	DefaultRefreshAgeLimit = 30 * 24 * time.Hour
)

// bearerClaims is the claim set carried by issued bearer tokens:
// {sub, installation_id, iat, exp}.
type bearerClaims struct {
	InstallationID int64 `json:"installation_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies stateless HS256 bearer tokens. A token is
// valid strictly before its expiry instant; refresh mints a replacement with
// a fresh issue time rather than extending the old one in place.
type TokenIssuer struct {
	secret          []byte
	tokenTTL        time.Duration
	refreshAgeLimit time.Duration
	now             func() time.Time
}

// NewTokenIssuer creates a token issuer. Non-positive durations select the
// defaults.
func NewTokenIssuer(secret string, tokenTTL, refreshAgeLimit time.Duration) *TokenIssuer {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if refreshAgeLimit <= 0 {
		refreshAgeLimit = DefaultRefreshAgeLimit
	}
	return &TokenIssuer{
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		refreshAgeLimit: refreshAgeLimit,
		now:             time.Now,
	}
}

// Issue signs a bearer token for the user. An installationID of zero means
// the user has not installed the App yet.
func (i *TokenIssuer) Issue(username string, installationID int64) (string, error) {
	if username == "" {
		return "", &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	token, _, err := i.mint(username, installationID)
	return token, err
}

// Verify checks signature and expiry and returns the token's claims. The
// token is invalid at exactly its expiry instant.
func (i *TokenIssuer) Verify(token string) (*models.UserTokenClaims, error) {
	return i.parse(token, false)
}

// Refresh mints a replacement token with a fresh lifetime. The input may be
// expired, but its signature must check out and its issue time must be within
// the refresh age limit; beyond that the caller gets a TooOldError and has to
// log in again.
func (i *TokenIssuer) Refresh(token string) (string, *models.UserTokenClaims, error) {
	claims, err := i.parse(token, true)
	if err != nil {
		return "", nil, err
	}
	if age := i.now().Sub(claims.IssuedAt); age > i.refreshAgeLimit {
		return "", nil, &TooOldError{IssuedAt: claims.IssuedAt, Limit: i.refreshAgeLimit}
	}
	return i.mint(claims.Subject, claims.InstallationID)
}

// mint signs a fresh token and returns it with its claims.
func (i *TokenIssuer) mint(username string, installationID int64) (string, *models.UserTokenClaims, error) {
	issuedAt := jwt.NewNumericDate(i.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(i.tokenTTL))

	claims := &bearerClaims{
		InstallationID: installationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, &models.UserTokenClaims{
		Subject:        username,
		InstallationID: installationID,
		IssuedAt:       issuedAt.Time,
		ExpiresAt:      expiresAt.Time,
	}, nil
}

// parse verifies the token and extracts its claims. allowExpired skips the
// time checks (refresh path) while still requiring a valid signature.
func (i *TokenIssuer) parse(token string, allowExpired bool) (*models.UserTokenClaims, error) {
	if token == "" {
		return nil, &InvalidTokenError{Reason: ReasonMalformed}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &bearerClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, i.keyFunc, opts...); err != nil {
		return nil, classifyTokenError(err)
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, &InvalidTokenError{Reason: ReasonMalformed}
	}

	return &models.UserTokenClaims{
		Subject:        claims.Subject,
		InstallationID: claims.InstallationID,
		IssuedAt:       claims.IssuedAt.Time,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

func (i *TokenIssuer) keyFunc(*jwt.Token) (interface{}, error) {
	return i.secret, nil
}

// classifyTokenError folds the jwt library's error tree into the three
// client-safe reasons.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &InvalidTokenError{Reason: ReasonExpired}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &InvalidTokenError{Reason: ReasonSignature}
	default:
		return &InvalidTokenError{Reason: ReasonMalformed}
	}
}
