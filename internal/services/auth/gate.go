package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
)

// Gate walks a request through the access tiers:
// Anonymous → Identified → Authorized(installation) → AuthorizedAdmin.
// Every method fails closed; no tier can be skipped, and secrets never
// appear in returned errors.
type Gate struct {
	auth   interfaces.AuthService
	logger *common.Logger
}

// NewGate creates an access gate over the auth service.
func NewGate(auth interfaces.AuthService, logger *common.Logger) *Gate {
	return &Gate{auth: auth, logger: logger}
}

// Authenticate verifies the Authorization header and resolves the caller's
// identity. Anything short of a valid "Bearer <token>" is Unauthorized with
// a client-safe reason.
func (g *Gate) Authenticate(ctx context.Context, header string) (*common.UserContext, error) {
	token, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	uc, err := g.auth.Authenticate(ctx, token)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Bearer authentication failed")
		var invalid *InvalidTokenError
		if errors.As(err, &invalid) {
			return nil, &UnauthorizedError{Reason: invalid.Error()}
		}
		return nil, &UnauthorizedError{Reason: "authentication failed"}
	}
	return uc, nil
}

// RequireInstallation ensures the identity carries an App installation and
// returns its ID.
func (g *Gate) RequireInstallation(uc *common.UserContext) (int64, error) {
	if uc == nil {
		return 0, &UnauthorizedError{Reason: "missing bearer token"}
	}
	if !uc.HasInstallation() {
		return 0, &InstallationRequiredError{Username: uc.Username}
	}
	return uc.InstallationID, nil
}

// GitHubClient mints a fresh installation token for the identity and returns
// a repository client bound to it. Provider failures propagate typed, so the
// caller can tell a reinstall-needed condition from a retryable one.
func (g *Gate) GitHubClient(ctx context.Context, uc *common.UserContext) (interfaces.RepositoryClient, error) {
	if _, err := g.RequireInstallation(uc); err != nil {
		return nil, err
	}
	return g.auth.InstallationClientFor(ctx, uc)
}

// RequireAdmin ensures the stored user record behind the identity carries the
// admin flag. The flag lives in storage, not in the token, so a revocation
// takes effect on the next request.
func (g *Gate) RequireAdmin(ctx context.Context, uc *common.UserContext) error {
	if uc == nil {
		return &UnauthorizedError{Reason: "missing bearer token"}
	}

	user, err := g.auth.CurrentUser(ctx, uc.Username)
	if err != nil {
		return err
	}
	if !user.IsAdmin {
		return &ForbiddenError{Reason: "admin privileges required"}
	}
	uc.IsAdmin = true
	return nil
}

// bearerToken extracts the token from an Authorization header value. Only
// the Bearer scheme is accepted.
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", &UnauthorizedError{Reason: "missing bearer token"}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", &UnauthorizedError{Reason: "authorization header is not a bearer token"}
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", &UnauthorizedError{Reason: "missing bearer token"}
	}
	return token, nil
}
