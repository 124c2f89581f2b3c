package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/quillhq/quill/internal/models"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		input string
		owner string
		repo  string
	}{
		{"acme/widgets", "acme", "widgets"},
		{"https://github.com/acme/widgets", "acme", "widgets"},
		{"https://github.com/acme/widgets.git", "acme", "widgets"},
		{"https://github.com/acme/widgets/", "acme", "widgets"},
		{"https://github.com/acme/widgets/tree/main", "acme", "widgets"},
		{"http://github.com/acme/widgets", "acme", "widgets"},
		{"github.com/acme/widgets", "acme", "widgets"},
		{"acme/widgets.git", "acme", "widgets"},
		{" acme/widgets ", "acme", "widgets"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, repo, err := ParseRepository(tt.input)
			if err != nil {
				t.Fatalf("ParseRepository(%q) returned error: %v", tt.input, err)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("ParseRepository(%q) = (%q, %q), want (%q, %q)", tt.input, owner, repo, tt.owner, tt.repo)
			}
		})
	}
}

func TestParseRepositoryBareAndURLAgree(t *testing.T) {
	bareOwner, bareRepo, err := ParseRepository("acme/widgets")
	if err != nil {
		t.Fatalf("bare form: %v", err)
	}
	urlOwner, urlRepo, err := ParseRepository("https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("url form: %v", err)
	}
	if bareOwner != urlOwner || bareRepo != urlRepo {
		t.Errorf("forms disagree: (%q,%q) vs (%q,%q)", bareOwner, bareRepo, urlOwner, urlRepo)
	}
}

func TestParseRepositoryInvalid(t *testing.T) {
	for _, input := range []string{"", "widgets", "https://github.com", "https://github.com/acme", "/"} {
		t.Run(input, func(t *testing.T) {
			_, _, err := ParseRepository(input)
			var parseErr *RepoParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("ParseRepository(%q): expected RepoParseError, got %v", input, err)
			}
		})
	}
}

// accessListHandler serves a paginated /installation/repositories listing.
func accessListHandler(t *testing.T, fullNames []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/installation/repositories" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)

		start := (page - 1) * reposPerPage
		end := start + reposPerPage
		if start > len(fullNames) {
			start = len(fullNames)
		}
		if end > len(fullNames) {
			end = len(fullNames)
		}

		repos := make([]map[string]interface{}, 0, end-start)
		for i, name := range fullNames[start:end] {
			repos = append(repos, map[string]interface{}{
				"id":        start + i + 1,
				"full_name": name,
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count":  len(fullNames),
			"repositories": repos,
		})
	}
}

func testInstallationClient(srvURL string) *installationClient {
	client := NewClient(testAppConfig(""), WithAPIBaseURL(srvURL))
	return client.InstallationClient(&models.InstallationToken{Token: "ghs_test", InstallationID: 42}).(*installationClient)
}

func TestValidateAccess(t *testing.T) {
	srv := httptest.NewServer(accessListHandler(t, []string{"acme/widgets", "acme/gadgets"}))
	defer srv.Close()

	ic := testInstallationClient(srv.URL)
	if err := ic.ValidateAccess(context.Background(), "acme", "widgets"); err != nil {
		t.Fatalf("ValidateAccess returned error: %v", err)
	}

	// Case differences in the stored name must not deny access.
	if err := ic.ValidateAccess(context.Background(), "Acme", "Widgets"); err != nil {
		t.Fatalf("case-insensitive match failed: %v", err)
	}
}

func TestValidateAccessForbidden(t *testing.T) {
	srv := httptest.NewServer(accessListHandler(t, []string{"acme/gadgets"}))
	defer srv.Close()

	ic := testInstallationClient(srv.URL)
	err := ic.ValidateAccess(context.Background(), "acme", "widgets")

	var forbidden *ForbiddenRepoError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenRepoError, got %v", err)
	}
	if forbidden.Owner != "acme" || forbidden.Repo != "widgets" {
		t.Errorf("error identifies %s/%s, want acme/widgets", forbidden.Owner, forbidden.Repo)
	}
}

func TestValidateAccessWalksAllPages(t *testing.T) {
	names := make([]string, 0, reposPerPage+1)
	for i := 0; i < reposPerPage; i++ {
		names = append(names, fmt.Sprintf("acme/filler-%d", i))
	}
	names = append(names, "acme/widgets") // only present on page 2

	srv := httptest.NewServer(accessListHandler(t, names))
	defer srv.Close()

	ic := testInstallationClient(srv.URL)
	if err := ic.ValidateAccess(context.Background(), "acme", "widgets"); err != nil {
		t.Fatalf("expected repo on page 2 to be found, got %v", err)
	}
}

func TestCommitFileDeniedBeforeWrite(t *testing.T) {
	var mutated int32

	mux := http.NewServeMux()
	mux.HandleFunc("/installation/repositories", accessListHandler(t, []string{"acme/gadgets"}))
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			atomic.AddInt32(&mutated, 1)
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ic := testInstallationClient(srv.URL)
	_, err := ic.CommitFile(context.Background(), "acme", "widgets", &models.FileCommit{
		Path:    "README.md",
		Message: "docs: update README",
		Content: []byte("# Widgets"),
	})

	var forbidden *ForbiddenRepoError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenRepoError, got %v", err)
	}
	if n := atomic.LoadInt32(&mutated); n != 0 {
		t.Errorf("mutating call reached GitHub %d times despite denial", n)
	}
}
