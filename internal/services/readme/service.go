// Package readme turns repository context into README documents through the
// Gemini API and publishes the results back through the GitHub contents API.
package readme

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
	"github.com/quillhq/quill/internal/services/auth"
)

const (
	defaultReadmePath    = "README.md"
	defaultCommitMessage = "Update README.md"

	// refinementRepository marks history entries produced from pasted
	// content rather than a repository generation.
	refinementRepository = "manual-refinement"
)

// Service implements interfaces.ReadmeService.
type Service struct {
	auth    interfaces.AuthService
	gemini  interfaces.GeminiClient
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new README service.
func NewService(
	authService interfaces.AuthService,
	gemini interfaces.GeminiClient,
	storage interfaces.StorageManager,
	logger *common.Logger,
) *Service {
	return &Service{
		auth:    authService,
		gemini:  gemini,
		storage: storage,
		logger:  logger,
	}
}

// Generate assembles repository context, prompts the model, and stores the
// result in the user's history. The installation's access to the repository
// is validated before any content is fetched.
func (s *Service) Generate(ctx context.Context, user *common.UserContext, owner, repo string, opts interfaces.GenerateOptions) (*models.ReadmeGeneration, error) {
	if s.gemini == nil {
		return nil, fmt.Errorf("gemini client is not configured")
	}
	if owner == "" || repo == "" {
		return nil, &auth.ValidationError{Field: "repository", Reason: "owner and name are required"}
	}

	client, err := s.auth.InstallationClientFor(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := client.ValidateAccess(ctx, owner, repo); err != nil {
		return nil, err
	}

	bundle, err := s.buildContext(ctx, client, owner, repo)
	if err != nil {
		return nil, err
	}

	prompt := buildGenerationPrompt(bundle, opts)
	raw, err := s.gemini.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate README: %w", err)
	}

	content := stripMarkdownFence(raw)
	if content == "" {
		return nil, fmt.Errorf("model returned empty README for %s/%s", owner, repo)
	}

	gen, err := s.record(ctx, user.Username, owner+"/"+repo, content)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", user.Username).
		Str("repository", gen.Repository).
		Int("version", gen.Version).
		Int("content_len", len(content)).
		Msg("README generated")
	return gen, nil
}

// Refine rewrites existing README content per the feedback and stores the
// result in the user's history. No repository access is needed; the input is
// the caller's own text.
func (s *Service) Refine(ctx context.Context, user *common.UserContext, content, feedback string) (*models.ReadmeGeneration, error) {
	if s.gemini == nil {
		return nil, fmt.Errorf("gemini client is not configured")
	}
	if user == nil || user.Username == "" {
		return nil, &auth.UnauthorizedError{Reason: "missing user context"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &auth.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, &auth.ValidationError{Field: "feedback", Reason: "must not be empty"}
	}

	raw, err := s.gemini.GenerateContent(ctx, buildRefinementPrompt(content, feedback))
	if err != nil {
		return nil, fmt.Errorf("failed to refine README: %w", err)
	}

	refined := stripMarkdownFence(raw)
	if refined == "" {
		return nil, fmt.Errorf("model returned empty refinement")
	}

	gen, err := s.record(ctx, user.Username, refinementRepository, refined)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", user.Username).
		Int("version", gen.Version).
		Msg("README refined")
	return gen, nil
}

// Save commits README content to the repository. Access is validated before
// any write; a requested branch that does not exist yet is created from the
// default branch head first.
func (s *Service) Save(ctx context.Context, user *common.UserContext, owner, repo, content string, opts interfaces.SaveOptions) (*models.CommitResult, error) {
	if owner == "" || repo == "" {
		return nil, &auth.ValidationError{Field: "repository", Reason: "owner and name are required"}
	}
	if strings.TrimSpace(content) == "" {
		return nil, &auth.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	client, err := s.auth.InstallationClientFor(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := client.ValidateAccess(ctx, owner, repo); err != nil {
		return nil, err
	}

	if opts.Branch != "" {
		if err := s.ensureBranch(ctx, client, owner, repo, opts.Branch); err != nil {
			return nil, err
		}
	}

	path := opts.Path
	if path == "" {
		path = defaultReadmePath
	}
	message := opts.Message
	if message == "" {
		message = defaultCommitMessage
	}

	result, err := client.CommitFile(ctx, owner, repo, &models.FileCommit{
		Path:    path,
		Branch:  opts.Branch,
		Message: message,
		Content: []byte(content),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", user.Username).
		Str("repository", owner+"/"+repo).
		Str("path", result.Path).
		Str("commit_sha", result.CommitSHA).
		Bool("created", result.Created).
		Msg("README committed")
	return result, nil
}

// ensureBranch creates branch from the default branch head when it does not
// exist yet.
func (s *Service) ensureBranch(ctx context.Context, client interfaces.RepositoryClient, owner, repo, branch string) error {
	branches, err := client.ListBranches(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}
	for _, b := range branches {
		if b.Name == branch {
			return nil
		}
	}

	created, err := client.CreateBranch(ctx, owner, repo, branch, "")
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}

	s.logger.Info().
		Str("repository", owner+"/"+repo).
		Str("branch", created.Name).
		Str("head", created.CommitSHA).
		Msg("Branch created")
	return nil
}

// record stores one generation with the next version number for the
// user/repository pair.
func (s *Service) record(ctx context.Context, username, repository, content string) (*models.ReadmeGeneration, error) {
	latest, err := s.storage.ReadmeStore().LatestVersion(ctx, username, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve version: %w", err)
	}

	gen, err := s.storage.ReadmeStore().Save(ctx, &models.ReadmeGeneration{
		Username:   username,
		Repository: repository,
		Content:    content,
		Model:      s.gemini.Model(),
		Version:    latest + 1,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store generation: %w", err)
	}
	return gen, nil
}

// History returns the user's stored generations, newest first.
func (s *Service) History(ctx context.Context, username string, opts interfaces.ReadmeListOptions) ([]*models.ReadmeGeneration, error) {
	return s.storage.ReadmeStore().ListByUser(ctx, username, opts)
}

// Ensure Service implements ReadmeService
var _ interfaces.ReadmeService = (*Service)(nil)
