// Package interfaces defines service contracts for Quill
package interfaces

import (
	"context"

	"github.com/quillhq/quill/internal/models"
)

// GitHubClient provides GitHub App credential operations and the OAuth web
// flow. Methods never cache installation tokens; each call mints fresh
// credentials so revocations upstream take effect immediately.
type GitHubClient interface {
	// MintAssertion signs a short-lived app JWT proving app identity.
	MintAssertion() (*models.AppAssertion, error)

	// CreateInstallationToken exchanges the app identity for an installation
	// access token scoped to one installation.
	CreateInstallationToken(ctx context.Context, installationID int64) (*models.InstallationToken, error)

	// AuthorizeURL builds the GitHub OAuth authorize URL carrying state.
	AuthorizeURL(state string) string

	// ExchangeCode trades an OAuth authorization code for a user credential.
	ExchangeCode(ctx context.Context, code string) (*models.UserCredential, error)

	// FetchIdentity resolves the credential's owning GitHub account.
	FetchIdentity(ctx context.Context, cred *models.UserCredential) (*models.GitHubProfile, error)

	// InstallationClient returns a client whose requests carry the given
	// installation token.
	InstallationClient(token *models.InstallationToken) RepositoryClient

	// InstallURL is the public page where users install the GitHub App.
	InstallURL() string
}

// RepositoryClient performs repository operations under an installation token.
type RepositoryClient interface {
	// Token reports the credential backing this client.
	Token() *models.InstallationToken

	// ListRepositories retrieves every repository the installation can access.
	ListRepositories(ctx context.Context) ([]*models.Repository, error)

	// GetRepository retrieves repository metadata.
	GetRepository(ctx context.Context, owner, repo string) (*models.Repository, error)

	// GetLanguages retrieves the byte counts per language.
	GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error)

	// GetContributors retrieves the top contributors by commit count.
	GetContributors(ctx context.Context, owner, repo string, limit int) ([]*models.Contributor, error)

	// GetTree retrieves the recursive file listing at a ref.
	GetTree(ctx context.Context, owner, repo, ref string) ([]*models.TreeEntry, error)

	// GetFileContent retrieves and decodes a single file at a ref.
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (*models.FileContent, error)

	// ListBranches retrieves the repository's branches.
	ListBranches(ctx context.Context, owner, repo string) ([]*models.Branch, error)

	// CreateBranch creates a branch from sourceBranch's head. Empty
	// sourceBranch means the repository default.
	CreateBranch(ctx context.Context, owner, repo, branch, sourceBranch string) (*models.Branch, error)

	// CommitFile creates or updates one file through the contents API.
	CommitFile(ctx context.Context, owner, repo string, commit *models.FileCommit) (*models.CommitResult, error)

	// ValidateAccess confirms the installation can reach owner/repo before
	// any mutating call. Returns a ForbiddenRepoError when it cannot.
	ValidateAccess(ctx context.Context, owner, repo string) error
}

// GeminiClient provides access to Gemini API
type GeminiClient interface {
	// GenerateContent generates AI content from a prompt
	GenerateContent(ctx context.Context, prompt string) (string, error)

	// Model reports the model name used for generation.
	Model() string
}
