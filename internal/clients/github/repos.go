package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// reposPerPage is the page size used when walking paginated listings.
const reposPerPage = 100

// installationClient performs repository calls under one installation token.
// Instances live for a single request; the token is discarded with them.
type installationClient struct {
	c     *Client
	token *models.InstallationToken
}

// InstallationClient returns a client whose requests carry the given
// installation token.
func (c *Client) InstallationClient(token *models.InstallationToken) interfaces.RepositoryClient {
	return &installationClient{c: c, token: token}
}

// auth returns the Authorization value for installation-scoped calls.
// Installation tokens use the "token" scheme, not "Bearer".
func (ic *installationClient) auth() string {
	return "token " + ic.token.Token
}

// ListRepositories retrieves every repository the installation can access,
// walking the paginated endpoint to exhaustion.
func (ic *installationClient) ListRepositories(ctx context.Context) ([]*models.Repository, error) {
	var all []*models.Repository
	for page := 1; ; page++ {
		var resp installationReposResponse
		path := fmt.Sprintf("/installation/repositories?per_page=%d&page=%d", reposPerPage, page)
		if err := ic.c.apiGet(ctx, path, ic.auth(), &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Repositories...)
		if len(resp.Repositories) < reposPerPage || len(all) >= resp.TotalCount {
			break
		}
	}
	return all, nil
}

type installationReposResponse struct {
	TotalCount   int                  `json:"total_count"`
	Repositories []*models.Repository `json:"repositories"`
}

// ValidateAccess confirms the installation can reach owner/repo. The check
// walks the full accessible-repositories list so a missing repository is a
// definitive ForbiddenRepoError, never a guess from a single page.
func (ic *installationClient) ValidateAccess(ctx context.Context, owner, repo string) error {
	target := strings.ToLower(owner + "/" + repo)
	seen := 0
	for page := 1; ; page++ {
		var resp installationReposResponse
		path := fmt.Sprintf("/installation/repositories?per_page=%d&page=%d", reposPerPage, page)
		if err := ic.c.apiGet(ctx, path, ic.auth(), &resp); err != nil {
			return err
		}
		for _, r := range resp.Repositories {
			if strings.ToLower(r.FullName) == target {
				return nil
			}
		}
		seen += len(resp.Repositories)
		if len(resp.Repositories) < reposPerPage || seen >= resp.TotalCount {
			break
		}
	}
	return &ForbiddenRepoError{Owner: owner, Repo: repo}
}

// GetRepository retrieves repository metadata.
func (ic *installationClient) GetRepository(ctx context.Context, owner, repo string) (*models.Repository, error) {
	var result models.Repository
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := ic.c.apiGet(ctx, path, ic.auth(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLanguages retrieves byte counts per language.
func (ic *installationClient) GetLanguages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	result := make(map[string]int64)
	path := fmt.Sprintf("/repos/%s/%s/languages", url.PathEscape(owner), url.PathEscape(repo))
	if err := ic.c.apiGet(ctx, path, ic.auth(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetContributors retrieves the top contributors by commit count.
func (ic *installationClient) GetContributors(ctx context.Context, owner, repo string, limit int) ([]*models.Contributor, error) {
	if limit <= 0 || limit > reposPerPage {
		limit = reposPerPage
	}
	var result []*models.Contributor
	path := fmt.Sprintf("/repos/%s/%s/contributors?per_page=%d", url.PathEscape(owner), url.PathEscape(repo), limit)
	if err := ic.c.apiGet(ctx, path, ic.auth(), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetTree retrieves the recursive file listing at a ref.
func (ic *installationClient) GetTree(ctx context.Context, owner, repo, ref string) ([]*models.TreeEntry, error) {
	var resp struct {
		SHA       string `json:"sha"`
		Truncated bool   `json:"truncated"`
		Tree      []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			Size int64  `json:"size"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	if err := ic.c.apiGet(ctx, path, ic.auth(), &resp); err != nil {
		return nil, err
	}
	if resp.Truncated {
		ic.c.logger.Warn().Str("repo", owner+"/"+repo).Msg("Git tree truncated by GitHub")
	}

	entries := make([]*models.TreeEntry, len(resp.Tree))
	for i, e := range resp.Tree {
		entries[i] = &models.TreeEntry{
			Path: e.Path,
			Type: e.Type,
			Size: e.Size,
			SHA:  e.SHA,
		}
	}
	return entries, nil
}

// GetFileContent retrieves and decodes a single file at a ref.
func (ic *installationClient) GetFileContent(ctx context.Context, owner, repo, filePath, ref string) (*models.FileContent, error) {
	var resp contentsResponse
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapeContentPath(filePath))
	if ref != "" {
		path += "?ref=" + url.QueryEscape(ref)
	}
	if err := ic.c.apiGet(ctx, path, ic.auth(), &resp); err != nil {
		return nil, err
	}
	if resp.Type != "file" {
		return nil, &APIError{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf("%s is a %s, not a file", filePath, resp.Type), Endpoint: path}
	}

	decoded, err := decodeBase64Content(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}

	return &models.FileContent{
		Path:    resp.Path,
		SHA:     resp.SHA,
		Size:    resp.Size,
		Content: decoded,
	}, nil
}

type contentsResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// ListBranches retrieves the repository's branches.
func (ic *installationClient) ListBranches(ctx context.Context, owner, repo string) ([]*models.Branch, error) {
	var resp []struct {
		Name   string `json:"name"`
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
		Protected bool `json:"protected"`
	}
	path := fmt.Sprintf("/repos/%s/%s/branches?per_page=%d", url.PathEscape(owner), url.PathEscape(repo), reposPerPage)
	if err := ic.c.apiGet(ctx, path, ic.auth(), &resp); err != nil {
		return nil, err
	}

	branches := make([]*models.Branch, len(resp))
	for i, b := range resp {
		branches[i] = &models.Branch{
			Name:      b.Name,
			CommitSHA: b.Commit.SHA,
			Protected: b.Protected,
		}
	}
	return branches, nil
}

// CreateBranch creates a branch from sourceBranch's head. Empty sourceBranch
// falls back to the repository's default branch.
func (ic *installationClient) CreateBranch(ctx context.Context, owner, repo, branch, sourceBranch string) (*models.Branch, error) {
	if sourceBranch == "" {
		details, err := ic.GetRepository(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		sourceBranch = details.DefaultBranch
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	refPath := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sourceBranch))
	if err := ic.c.apiGet(ctx, refPath, ic.auth(), &ref); err != nil {
		return nil, err
	}

	createPath := fmt.Sprintf("/repos/%s/%s/git/refs", url.PathEscape(owner), url.PathEscape(repo))
	payload := map[string]interface{}{
		"ref": "refs/heads/" + branch,
		"sha": ref.Object.SHA,
	}
	status, body, err := ic.c.apiRequest(ctx, http.MethodPost, createPath, ic.auth(), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, &APIError{StatusCode: status, Message: truncate(string(body), 512), Endpoint: createPath}
	}

	return &models.Branch{Name: branch, CommitSHA: ref.Object.SHA}, nil
}

// CommitFile creates or updates one file through the contents API. Access is
// validated against the installation's repository list before the write.
func (ic *installationClient) CommitFile(ctx context.Context, owner, repo string, commit *models.FileCommit) (*models.CommitResult, error) {
	if err := ic.ValidateAccess(ctx, owner, repo); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapeContentPath(commit.Path))

	// The contents API requires the current blob SHA when updating.
	existingSHA, err := ic.findFileSHA(ctx, path, commit.Branch)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"message": commit.Message,
		"content": base64.StdEncoding.EncodeToString(commit.Content),
	}
	if commit.Branch != "" {
		payload["branch"] = commit.Branch
	}
	if existingSHA != "" {
		payload["sha"] = existingSHA
	}

	status, body, err := ic.c.apiRequest(ctx, http.MethodPut, path, ic.auth(), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &APIError{StatusCode: status, Message: truncate(string(body), 512), Endpoint: path}
	}

	var resp struct {
		Content struct {
			Path    string `json:"path"`
			HTMLURL string `json:"html_url"`
		} `json:"content"`
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &models.CommitResult{
		Path:      resp.Content.Path,
		Branch:    commit.Branch,
		CommitSHA: resp.Commit.SHA,
		HTMLURL:   resp.Content.HTMLURL,
		Created:   status == http.StatusCreated,
	}, nil
}

// findFileSHA returns the blob SHA at path, or "" when the file is absent.
func (ic *installationClient) findFileSHA(ctx context.Context, path, branch string) (string, error) {
	lookup := path
	if branch != "" {
		lookup += "?ref=" + url.QueryEscape(branch)
	}
	var resp contentsResponse
	err := ic.c.apiGet(ctx, lookup, ic.auth(), &resp)
	if err == nil {
		return resp.SHA, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return "", nil
	}
	return "", err
}

// Token reports the credential backing this client.
func (ic *installationClient) Token() *models.InstallationToken {
	return ic.token
}

// escapeContentPath escapes each segment of a repository file path while
// keeping the separators.
func escapeContentPath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// decodeBase64Content decodes the line-wrapped base64 the contents API returns.
func decodeBase64Content(content string) (string, error) {
	cleaned := strings.ReplaceAll(content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// Ensure installationClient implements RepositoryClient
var _ interfaces.RepositoryClient = (*installationClient)(nil)
