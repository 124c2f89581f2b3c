package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/clients/github"
	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
	"github.com/quillhq/quill/internal/storage/memory"
)

// --- Mock GitHub client ---

type mockGitHubClient struct {
	exchangeErr error
	identity    *models.GitHubProfile
	identityErr error
	mintErr     error
	mintCalls   []int64
	lastCode    string
}

func (m *mockGitHubClient) MintAssertion() (*models.AppAssertion, error) {
	now := time.Now()
	return &models.AppAssertion{Token: "assertion", AppID: "12345", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute)}, nil
}

func (m *mockGitHubClient) CreateInstallationToken(_ context.Context, installationID int64) (*models.InstallationToken, error) {
	m.mintCalls = append(m.mintCalls, installationID)
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	return &models.InstallationToken{
		Token:          fmt.Sprintf("ghs_installation_%d", installationID),
		InstallationID: installationID,
		ExpiresAt:      time.Now().Add(time.Hour),
	}, nil
}

func (m *mockGitHubClient) AuthorizeURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (m *mockGitHubClient) ExchangeCode(_ context.Context, code string) (*models.UserCredential, error) {
	m.lastCode = code
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return &models.UserCredential{Token: "gho_user_" + code, Scope: "public_repo"}, nil
}

func (m *mockGitHubClient) FetchIdentity(_ context.Context, _ *models.UserCredential) (*models.GitHubProfile, error) {
	if m.identityErr != nil {
		return nil, m.identityErr
	}
	if m.identity != nil {
		return m.identity, nil
	}
	return &models.GitHubProfile{Login: "alice", ID: 1001}, nil
}

func (m *mockGitHubClient) InstallationClient(token *models.InstallationToken) interfaces.RepositoryClient {
	return &mockRepositoryClient{token: token}
}

func (m *mockGitHubClient) InstallURL() string {
	return "https://github.test/apps/quill/installations/new"
}

// --- Mock repository client ---

type mockRepositoryClient struct {
	token *models.InstallationToken
}

func (m *mockRepositoryClient) Token() *models.InstallationToken { return m.token }

func (m *mockRepositoryClient) ListRepositories(_ context.Context) ([]*models.Repository, error) {
	return nil, nil
}

func (m *mockRepositoryClient) GetRepository(_ context.Context, _, _ string) (*models.Repository, error) {
	return nil, nil
}

func (m *mockRepositoryClient) GetLanguages(_ context.Context, _, _ string) (map[string]int64, error) {
	return nil, nil
}

func (m *mockRepositoryClient) GetContributors(_ context.Context, _, _ string, _ int) ([]*models.Contributor, error) {
	return nil, nil
}

func (m *mockRepositoryClient) GetTree(_ context.Context, _, _, _ string) ([]*models.TreeEntry, error) {
	return nil, nil
}

func (m *mockRepositoryClient) GetFileContent(_ context.Context, _, _, _, _ string) (*models.FileContent, error) {
	return nil, nil
}

func (m *mockRepositoryClient) ListBranches(_ context.Context, _, _ string) ([]*models.Branch, error) {
	return nil, nil
}

func (m *mockRepositoryClient) CreateBranch(_ context.Context, _, _, _, _ string) (*models.Branch, error) {
	return nil, nil
}

func (m *mockRepositoryClient) CommitFile(_ context.Context, _, _ string, _ *models.FileCommit) (*models.CommitResult, error) {
	return nil, nil
}

func (m *mockRepositoryClient) ValidateAccess(_ context.Context, _, _ string) error {
	return nil
}

// --- Test helpers ---

func testService(t *testing.T) (*Service, *mockGitHubClient, interfaces.StorageManager) {
	t.Helper()
	logger := common.NewSilentLogger()
	storage := memory.NewManager(logger, common.NewDefaultConfig())
	gh := &mockGitHubClient{}
	issuer := NewTokenIssuer("test-secret", time.Hour, 0)
	return NewService(storage, gh, issuer, logger), gh, storage
}

func completeTestLogin(t *testing.T, svc *Service, installationID int64) *interfaces.LoginResult {
	t.Helper()
	start, err := svc.BeginLogin(context.Background())
	if err != nil {
		t.Fatalf("BeginLogin() error = %v", err)
	}
	result, err := svc.CompleteLogin(context.Background(), "abc123", start.State, start.State, installationID)
	if err != nil {
		t.Fatalf("CompleteLogin() error = %v", err)
	}
	return result
}

// --- Tests ---

func TestService_BeginLogin(t *testing.T) {
	svc, _, _ := testService(t)

	start, err := svc.BeginLogin(context.Background())
	if err != nil {
		t.Fatalf("BeginLogin() error = %v", err)
	}
	if start.State == "" {
		t.Error("BeginLogin() returned empty state")
	}
	if start.AuthorizeURL == "" {
		t.Error("BeginLogin() returned empty authorize URL")
	}

	// Each login attempt gets its own state.
	again, err := svc.BeginLogin(context.Background())
	if err != nil {
		t.Fatalf("BeginLogin() error = %v", err)
	}
	if again.State == start.State {
		t.Error("BeginLogin() reused the CSRF state")
	}
}

func TestService_CompleteLogin(t *testing.T) {
	svc, gh, storage := testService(t)

	result := completeTestLogin(t, svc, 0)

	if gh.lastCode != "abc123" {
		t.Errorf("exchanged code = %q, want %q", gh.lastCode, "abc123")
	}
	if result.Token == "" {
		t.Fatal("CompleteLogin() returned empty bearer token")
	}
	if result.SessionID == "" {
		t.Fatal("CompleteLogin() returned empty session ID")
	}
	if result.User == nil || result.User.Username != "alice" {
		t.Fatalf("CompleteLogin() user = %+v, want alice", result.User)
	}

	// The bearer resolves back to the same identity.
	claims, err := svc.VerifyToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "alice" || claims.InstallationID != 0 {
		t.Errorf("claims = %q/%d, want alice/0", claims.Subject, claims.InstallationID)
	}

	// A session exists and a user record was stored.
	sessionID, err := storage.SessionStore().FindByUsername(context.Background(), "alice")
	if err != nil || sessionID != result.SessionID {
		t.Errorf("FindByUsername() = %q, %v; want %q", sessionID, err, result.SessionID)
	}
	user, err := storage.UserStore().Get(context.Background(), "alice")
	if err != nil || user == nil || user.GitHubID != 1001 {
		t.Errorf("stored user = %+v, %v", user, err)
	}
}

func TestService_CompleteLoginStateMismatch(t *testing.T) {
	svc, gh, _ := testService(t)

	_, err := svc.CompleteLogin(context.Background(), "abc123", "state-a", "state-b", 0)
	var csrf *CsrfError
	if !errors.As(err, &csrf) {
		t.Fatalf("CompleteLogin() error = %v, want CsrfError", err)
	}
	if gh.lastCode != "" {
		t.Error("code was exchanged despite the state mismatch")
	}
}

func TestService_CompleteLoginMissingState(t *testing.T) {
	svc, _, _ := testService(t)

	for _, tc := range [][2]string{{"", ""}, {"state", ""}, {"", "state"}} {
		_, err := svc.CompleteLogin(context.Background(), "abc123", tc[0], tc[1], 0)
		var csrf *CsrfError
		if !errors.As(err, &csrf) {
			t.Errorf("CompleteLogin(state=%q, cookie=%q) error = %v, want CsrfError", tc[0], tc[1], err)
		}
	}
}

func TestService_CompleteLoginExchangeFailure(t *testing.T) {
	svc, gh, storage := testService(t)
	gh.exchangeErr = &github.OAuthError{Code: "bad_verification_code", Description: "code expired"}

	_, err := svc.CompleteLogin(context.Background(), "stale", "s", "s", 0)
	var oauthErr *github.OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("CompleteLogin() error = %v, want OAuthError", err)
	}

	// Nothing was persisted for the failed login.
	sessionID, _ := storage.SessionStore().FindByUsername(context.Background(), "alice")
	if sessionID != "" {
		t.Error("session created despite failed exchange")
	}
}

func TestService_LoginReplacesSession(t *testing.T) {
	svc, _, storage := testService(t)

	first := completeTestLogin(t, svc, 0)
	second := completeTestLogin(t, svc, 0)

	if first.SessionID == second.SessionID {
		t.Fatal("second login reused the first session ID")
	}

	old, err := storage.SessionStore().Get(context.Background(), first.SessionID)
	if err != nil {
		t.Fatalf("Get(old session) error = %v", err)
	}
	if old != nil {
		t.Error("first session survived the second login")
	}
}

func TestService_CompleteLoginWithInstallation(t *testing.T) {
	svc, gh, storage := testService(t)

	result := completeTestLogin(t, svc, 42)

	if len(gh.mintCalls) != 1 || gh.mintCalls[0] != 42 {
		t.Fatalf("mintCalls = %v, want [42]", gh.mintCalls)
	}

	user, err := storage.UserStore().Get(context.Background(), "alice")
	if err != nil || user == nil || user.InstallationID != 42 {
		t.Fatalf("stored user installation = %+v, %v; want 42", user, err)
	}

	claims, err := svc.VerifyToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.InstallationID != 42 {
		t.Errorf("bearer InstallationID = %d, want 42", claims.InstallationID)
	}
}

func TestService_CompleteLoginBrokenInstallation(t *testing.T) {
	svc, gh, storage := testService(t)
	gh.mintErr = &github.UpstreamAuthError{StatusCode: 404, Body: "installation not found"}

	_, err := svc.CompleteLogin(context.Background(), "abc123", "s", "s", 99)
	var upstream *github.UpstreamAuthError
	if !errors.As(err, &upstream) {
		t.Fatalf("CompleteLogin() error = %v, want UpstreamAuthError", err)
	}

	// The unreachable installation never landed in storage.
	user, _ := storage.UserStore().Get(context.Background(), "alice")
	if user != nil && user.InstallationID != 0 {
		t.Errorf("installation %d recorded despite mint failure", user.InstallationID)
	}
}

func TestService_CompleteInstallation(t *testing.T) {
	svc, gh, storage := testService(t)
	completeTestLogin(t, svc, 0)
	gh.mintCalls = nil

	result, err := svc.CompleteInstallation(context.Background(), "alice", 42)
	if err != nil {
		t.Fatalf("CompleteInstallation() error = %v", err)
	}
	if len(gh.mintCalls) != 1 || gh.mintCalls[0] != 42 {
		t.Fatalf("mintCalls = %v, want [42]", gh.mintCalls)
	}

	claims, err := svc.VerifyToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "alice" || claims.InstallationID != 42 {
		t.Errorf("claims = %q/%d, want alice/42", claims.Subject, claims.InstallationID)
	}

	// The rebound session carries the installation.
	if result.SessionID == "" {
		t.Fatal("CompleteInstallation() did not rebind the live session")
	}
	sess, err := storage.SessionStore().Get(context.Background(), result.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("Get(session) = %+v, %v", sess, err)
	}
	if sess.InstallationID != 42 {
		t.Errorf("session InstallationID = %d, want 42", sess.InstallationID)
	}
}

func TestService_CompleteInstallationRequiresIdentity(t *testing.T) {
	svc, _, _ := testService(t)

	_, err := svc.CompleteInstallation(context.Background(), "", 42)
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("CompleteInstallation() error = %v, want UnauthorizedError", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, _, _ := testService(t)
	result := completeTestLogin(t, svc, 7)

	uc, err := svc.Authenticate(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if uc.Username != "alice" || uc.InstallationID != 7 {
		t.Errorf("UserContext = %q/%d, want alice/7", uc.Username, uc.InstallationID)
	}

	_, err = svc.Authenticate(context.Background(), "not-a-token")
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("Authenticate(garbage) error = %v, want InvalidTokenError", err)
	}
}

func TestService_RefreshToken(t *testing.T) {
	svc, _, _ := testService(t)
	result := completeTestLogin(t, svc, 7)

	fresh, claims, err := svc.RefreshToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if fresh == "" || fresh == result.Token {
		t.Error("RefreshToken() did not mint a new token")
	}
	if claims.Subject != "alice" || claims.InstallationID != 7 {
		t.Errorf("claims = %q/%d, want alice/7", claims.Subject, claims.InstallationID)
	}
}

func TestService_Logout(t *testing.T) {
	svc, _, storage := testService(t)
	result := completeTestLogin(t, svc, 0)

	deleted, err := svc.Logout(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if !deleted {
		t.Fatal("Logout() = false, want true")
	}

	sess, _ := storage.SessionStore().Get(context.Background(), result.SessionID)
	if sess != nil {
		t.Error("session survived logout")
	}

	// A second logout finds nothing.
	deleted, err = svc.Logout(context.Background(), "alice")
	if err != nil || deleted {
		t.Errorf("second Logout() = %v, %v; want false, nil", deleted, err)
	}
}

func TestService_CurrentUser(t *testing.T) {
	svc, _, _ := testService(t)
	completeTestLogin(t, svc, 0)

	user, err := svc.CurrentUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want alice", user.Username)
	}

	_, err = svc.CurrentUser(context.Background(), "nobody")
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("CurrentUser(nobody) error = %v, want UnauthorizedError", err)
	}
}

func TestService_InstallationClientFor(t *testing.T) {
	svc, gh, _ := testService(t)

	// No installation: refused before any network call.
	_, err := svc.InstallationClientFor(context.Background(), &common.UserContext{Username: "alice"})
	var required *InstallationRequiredError
	if !errors.As(err, &required) {
		t.Fatalf("InstallationClientFor() error = %v, want InstallationRequiredError", err)
	}
	if len(gh.mintCalls) != 0 {
		t.Fatal("token minted despite missing installation")
	}

	client, err := svc.InstallationClientFor(context.Background(), &common.UserContext{Username: "alice", InstallationID: 42})
	if err != nil {
		t.Fatalf("InstallationClientFor() error = %v", err)
	}
	token := client.Token()
	if token == nil || token.InstallationID != 42 {
		t.Fatalf("client token = %+v, want installation 42", token)
	}
	if token.Token != "ghs_installation_42" {
		t.Errorf("client token = %q, want the one minted for 42", token.Token)
	}
}

func TestService_SetAdminRole(t *testing.T) {
	svc, gh, _ := testService(t)
	completeTestLogin(t, svc, 0)
	gh.identity = &models.GitHubProfile{Login: "bob", ID: 1002}
	completeTestLogin(t, svc, 0)

	if err := svc.SetAdminRole(context.Background(), "alice", "bob", true); err != nil {
		t.Fatalf("SetAdminRole(grant) error = %v", err)
	}
	user, _ := svc.CurrentUser(context.Background(), "bob")
	if !user.IsAdmin {
		t.Fatal("bob should be admin after grant")
	}

	// Granting twice is a quiet no-op.
	if err := svc.SetAdminRole(context.Background(), "alice", "bob", true); err != nil {
		t.Fatalf("SetAdminRole(grant again) error = %v", err)
	}

	if err := svc.SetAdminRole(context.Background(), "alice", "bob", false); err != nil {
		t.Fatalf("SetAdminRole(revoke) error = %v", err)
	}
	user, _ = svc.CurrentUser(context.Background(), "bob")
	if user.IsAdmin {
		t.Fatal("bob should not be admin after revoke")
	}
}

func TestService_SetAdminRoleSelfDemotion(t *testing.T) {
	svc, _, _ := testService(t)
	completeTestLogin(t, svc, 0)

	err := svc.SetAdminRole(context.Background(), "alice", "alice", false)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("SetAdminRole(self revoke) error = %v, want ValidationError", err)
	}

	// Self-granting is not blocked, only self-demotion.
	if err := svc.SetAdminRole(context.Background(), "alice", "alice", true); err != nil {
		t.Fatalf("SetAdminRole(self grant) error = %v", err)
	}
}

func TestService_SetAdminRoleUnknownTarget(t *testing.T) {
	svc, _, _ := testService(t)

	err := svc.SetAdminRole(context.Background(), "alice", "ghost", true)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("SetAdminRole(ghost) error = %v, want NotFoundError", err)
	}
}
