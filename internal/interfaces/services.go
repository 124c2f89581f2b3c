// Package interfaces defines service contracts for Quill
package interfaces

import (
	"context"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/models"
)

// AuthService owns the login lifecycle: OAuth handshake, sessions, bearer
// tokens, and the access tiers derived from them.
type AuthService interface {
	// BeginLogin creates a CSRF state and returns the GitHub authorize URL
	// carrying it.
	BeginLogin(ctx context.Context) (*LoginStart, error)

	// CompleteLogin finishes the OAuth callback: checks state against the
	// cookie value, exchanges the code, resolves the GitHub identity, upserts
	// the user, replaces their session, and issues a bearer token. A non-zero
	// installationID records an App installation that arrived on the same
	// redirect; it is validated by minting a token for it first.
	CompleteLogin(ctx context.Context, code, state, cookieState string, installationID int64) (*LoginResult, error)

	// CompleteInstallation binds a new App installation to an already
	// identified user: validates it by minting a token, records it on the
	// user, and reissues the bearer with the installation bound.
	CompleteInstallation(ctx context.Context, username string, installationID int64) (*LoginResult, error)

	// Authenticate verifies a bearer token and resolves it to a user context.
	// The caller's live session, when present, gets its expiry extended.
	Authenticate(ctx context.Context, token string) (*common.UserContext, error)

	// VerifyToken checks a bearer token and returns its claims without side
	// effects.
	VerifyToken(ctx context.Context, token string) (*models.UserTokenClaims, error)

	// RefreshToken reissues a bearer token with a fresh lifetime. Expired
	// input is acceptable up to the refresh age ceiling.
	RefreshToken(ctx context.Context, token string) (string, *models.UserTokenClaims, error)

	// Logout removes the user's session. Returns false when none existed.
	Logout(ctx context.Context, username string) (bool, error)

	// CurrentUser returns the stored record for an authenticated user.
	CurrentUser(ctx context.Context, username string) (*models.UserRecord, error)

	// InstallationClientFor mints an installation token for the user and
	// returns a repository client bound to it. Users without an installation
	// get an InstallationRequiredError.
	InstallationClientFor(ctx context.Context, user *common.UserContext) (RepositoryClient, error)

	// ListUsers returns all user records. Admin only; callers enforce.
	ListUsers(ctx context.Context) ([]*models.UserRecord, error)

	// SetAdminRole grants or revokes the admin flag on target. Actors cannot
	// revoke their own flag.
	SetAdminRole(ctx context.Context, actor, target string, grant bool) error
}

// LoginStart carries the redirect for a login attempt.
type LoginStart struct {
	AuthorizeURL string // GitHub authorize URL including the state
	State        string // CSRF state for the companion cookie
}

// LoginResult carries the outcome of a completed login.
type LoginResult struct {
	Token     string             // Signed bearer token
	SessionID string             // Server-side session ID for the cookie; empty leaves the cookie alone
	User      *models.UserRecord // Stored user record after profile merge
}

// WebhookService verifies and applies GitHub App webhook deliveries.
type WebhookService interface {
	// VerifySignature checks the X-Hub-Signature-256 header against the raw
	// payload. Any mismatch, malformed header, or missing secret is an error.
	VerifySignature(payload []byte, signature string) error

	// Process applies one delivery and returns a short action summary.
	// Unrecognized event types are ignored, not errors.
	Process(ctx context.Context, event, deliveryID string, payload []byte) (string, error)
}

// ReadmeService generates and publishes README documents.
type ReadmeService interface {
	// Generate assembles repository context, prompts the model, and stores
	// the result in the user's history.
	Generate(ctx context.Context, user *common.UserContext, owner, repo string, opts GenerateOptions) (*models.ReadmeGeneration, error)

	// Refine rewrites existing README content per the feedback and stores
	// the result in the user's history.
	Refine(ctx context.Context, user *common.UserContext, content, feedback string) (*models.ReadmeGeneration, error)

	// Save commits README content to the repository.
	Save(ctx context.Context, user *common.UserContext, owner, repo, content string, opts SaveOptions) (*models.CommitResult, error)

	// History returns the user's stored generations, newest first.
	History(ctx context.Context, username string, opts ReadmeListOptions) ([]*models.ReadmeGeneration, error)
}

// GenerateOptions configures README generation.
type GenerateOptions struct {
	Sections     []models.ReadmeSection // Requested sections; empty selects the defaults
	BadgeStyle   string                 // Shield style hint for the prompt (flat, flat-square, ...)
	Instructions string                 // Optional user guidance appended to the prompt
}

// SaveOptions configures the README commit.
type SaveOptions struct {
	Path    string // Target path; empty means README.md
	Branch  string // Target branch; empty means the repository default
	Message string // Commit message; empty selects a default
}
