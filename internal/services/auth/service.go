package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/quillhq/quill/internal/clients/github"
	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// Service implements interfaces.AuthService.
type Service struct {
	storage interfaces.StorageManager
	github  interfaces.GitHubClient
	issuer  *TokenIssuer
	logger  *common.Logger
}

// NewService creates a new auth service.
func NewService(
	storage interfaces.StorageManager,
	githubClient interfaces.GitHubClient,
	issuer *TokenIssuer,
	logger *common.Logger,
) *Service {
	return &Service{
		storage: storage,
		github:  githubClient,
		issuer:  issuer,
		logger:  logger,
	}
}

// BeginLogin creates a CSRF state and returns the GitHub authorize URL
// carrying it. The caller stores the state in an http-only cookie and checks
// the echo in CompleteLogin.
func (s *Service) BeginLogin(_ context.Context) (*interfaces.LoginStart, error) {
	state, err := github.GenerateState()
	if err != nil {
		return nil, err
	}
	return &interfaces.LoginStart{
		AuthorizeURL: s.github.AuthorizeURL(state),
		State:        state,
	}, nil
}

// CompleteLogin finishes the OAuth callback. The state echo must match the
// cookie value exactly; then the code is exchanged, the identity resolved,
// the user upserted, the session replaced, and a bearer issued. A non-zero
// installationID arriving on the same redirect is validated by minting an
// installation token before it is recorded.
func (s *Service) CompleteLogin(ctx context.Context, code, state, cookieState string, installationID int64) (*interfaces.LoginResult, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	if !stateMatches(state, cookieState) {
		return nil, &CsrfError{}
	}

	cred, err := s.github.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.github.FetchIdentity(ctx, cred)
	if err != nil {
		return nil, err
	}

	if installationID != 0 {
		if _, err := s.github.CreateInstallationToken(ctx, installationID); err != nil {
			return nil, err
		}
	}

	record := &models.UserRecord{
		Username:       profile.Login,
		InstallationID: installationID,
		LastLogin:      time.Now().UTC(),
	}
	record.ApplyProfile(*profile)

	stored, err := s.storage.UserStore().Upsert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	sessionID, err := s.storage.SessionStore().Create(ctx, stored.Username, cred.Token, stored.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.issuer.Issue(stored.Username, stored.InstallationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", stored.Username).
		Int64("installation_id", stored.InstallationID).
		Msg("Login completed")

	return &interfaces.LoginResult{Token: token, SessionID: sessionID, User: stored}, nil
}

// CompleteInstallation binds a new App installation to an identified user.
// The installation is proven reachable by minting a token for it before
// anything is recorded; a broken installation never lands in storage.
func (s *Service) CompleteInstallation(ctx context.Context, username string, installationID int64) (*interfaces.LoginResult, error) {
	if username == "" {
		return nil, &UnauthorizedError{Reason: "no identity to bind the installation to"}
	}
	if installationID == 0 {
		return nil, &ValidationError{Field: "installation_id", Reason: "must not be zero"}
	}

	if _, err := s.github.CreateInstallationToken(ctx, installationID); err != nil {
		return nil, err
	}

	stored, err := s.storage.UserStore().Upsert(ctx, &models.UserRecord{
		Username:       username,
		InstallationID: installationID,
		LastLogin:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record installation: %w", err)
	}

	// Rebind the live session so it carries the installation; the session ID
	// rotates because Create replaces the old session.
	sessionID := ""
	if oldID, err := s.storage.SessionStore().FindByUsername(ctx, username); err == nil && oldID != "" {
		if sess, err := s.storage.SessionStore().Get(ctx, oldID); err == nil && sess != nil {
			sessionID, err = s.storage.SessionStore().Create(ctx, username, sess.AccessToken, installationID)
			if err != nil {
				return nil, fmt.Errorf("failed to rebind session: %w", err)
			}
		}
	}

	token, err := s.issuer.Issue(username, installationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", username).
		Int64("installation_id", installationID).
		Msg("Installation bound")

	return &interfaces.LoginResult{Token: token, SessionID: sessionID, User: stored}, nil
}

// Authenticate verifies a bearer token and resolves it to a user context.
// The caller's live session, when present, gets its expiry extended; session
// storage trouble is logged, not surfaced, since the bearer alone proves the
// identity.
func (s *Service) Authenticate(ctx context.Context, token string) (*common.UserContext, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	if sessionID, err := s.storage.SessionStore().FindByUsername(ctx, claims.Subject); err == nil && sessionID != "" {
		if _, err := s.storage.SessionStore().Refresh(ctx, sessionID); err != nil {
			s.logger.Warn().Err(err).Str("username", claims.Subject).Msg("Session refresh failed")
		}
	}

	return &common.UserContext{
		Username:       claims.Subject,
		InstallationID: claims.InstallationID,
	}, nil
}

// VerifyToken checks a bearer token and returns its claims without side
// effects.
func (s *Service) VerifyToken(_ context.Context, token string) (*models.UserTokenClaims, error) {
	return s.issuer.Verify(token)
}

// RefreshToken reissues a bearer token with a fresh lifetime.
func (s *Service) RefreshToken(_ context.Context, token string) (string, *models.UserTokenClaims, error) {
	return s.issuer.Refresh(token)
}

// Logout removes the user's server-side session. The bearer token stays
// valid until it expires; only the session dies.
func (s *Service) Logout(ctx context.Context, username string) (bool, error) {
	sessionID, err := s.storage.SessionStore().FindByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to find session: %w", err)
	}
	if sessionID == "" {
		return false, nil
	}

	deleted, err := s.storage.SessionStore().Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	if deleted {
		s.logger.Info().Str("username", username).Msg("Logged out")
	}
	return deleted, nil
}

// CurrentUser returns the stored record for an authenticated user. A record
// missing after the token was issued fails closed.
func (s *Service) CurrentUser(ctx context.Context, username string) (*models.UserRecord, error) {
	user, err := s.storage.UserStore().Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, &UnauthorizedError{Reason: "unknown user"}
	}
	return user, nil
}

// InstallationClientFor mints a fresh installation token for the user and
// returns a repository client bound to it. The token is never cached, so an
// upstream revocation takes effect on the next request.
func (s *Service) InstallationClientFor(ctx context.Context, user *common.UserContext) (interfaces.RepositoryClient, error) {
	if user == nil {
		return nil, &UnauthorizedError{Reason: "missing user context"}
	}
	if !user.HasInstallation() {
		return nil, &InstallationRequiredError{Username: user.Username}
	}

	token, err := s.github.CreateInstallationToken(ctx, user.InstallationID)
	if err != nil {
		return nil, err
	}
	return s.github.InstallationClient(token), nil
}

// ListUsers returns all stored user records.
func (s *Service) ListUsers(ctx context.Context) ([]*models.UserRecord, error) {
	return s.storage.UserStore().List(ctx)
}

// SetAdminRole grants or revokes the admin flag on target. Actors cannot
// revoke their own flag, so the system always keeps at least the acting
// admin. Granting to an already-admin user (or revoking from a non-admin)
// is a no-op, not an error.
func (s *Service) SetAdminRole(ctx context.Context, actor, target string, grant bool) error {
	if !grant && actor == target {
		return &ValidationError{Field: "username", Reason: "cannot remove your own admin role"}
	}

	existing, err := s.storage.UserStore().Get(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if existing == nil {
		return &NotFoundError{Kind: "user", Key: target}
	}
	if existing.IsAdmin == grant {
		return nil
	}

	if err := s.storage.UserStore().SetAdmin(ctx, target, grant); err != nil {
		return fmt.Errorf("failed to update admin role: %w", err)
	}

	s.logger.Info().
		Str("actor", actor).
		Str("target", target).
		Bool("admin", grant).
		Msg("Admin role updated")
	return nil
}

// stateMatches compares the state echo to the issued value in constant time.
// Empty on either side never matches.
func stateMatches(state, cookieState string) bool {
	if state == "" || cookieState == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) == 1
}

// Ensure Service implements AuthService
var _ interfaces.AuthService = (*Service)(nil)
