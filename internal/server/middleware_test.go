package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillhq/quill/internal/common"
)

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("expected Access-Control-Allow-Headers to be set")
	}
}

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := corsMiddleware(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/readme/generate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var fromContext string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = common.CorrelationIDFromContext(r.Context())
	})
	handler := correlationIDMiddleware(next)

	// Caller-supplied X-Request-ID wins.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "req-abc" {
		t.Errorf("X-Correlation-ID = %q, want req-abc", got)
	}
	if fromContext != "req-abc" {
		t.Errorf("context correlation ID = %q, want req-abc", fromContext)
	}

	// X-Correlation-ID works as the fallback header.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-xyz")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-xyz" {
		t.Errorf("X-Correlation-ID = %q, want corr-xyz", got)
	}

	// Nothing supplied: a short ID is generated.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("generated correlation ID = %q, want 8 characters", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := common.NewLoggerFromConfig(common.LoggingConfig{Level: "disabled"})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})
	handler := recoveryMiddleware(logger)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestBearerAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	srv := newTestServer(t)

	var uc *common.UserContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uc = common.UserContextFromContext(r.Context())
	})
	handler := bearerAuthMiddleware(srv.app.Gate)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected anonymous request to pass, got %d", rec.Code)
	}
	if uc != nil {
		t.Errorf("expected no user context for anonymous request, got %+v", uc)
	}
}

func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	srv := newTestServer(t)
	token := bearerToken(t, "octocat", 42)

	var uc *common.UserContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uc = common.UserContextFromContext(r.Context())
	})
	handler := bearerAuthMiddleware(srv.app.Gate)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if uc == nil {
		t.Fatal("expected a user context for a valid token")
	}
	if uc.Username != "octocat" || uc.InstallationID != 42 {
		t.Errorf("resolved identity = %q/%d, want octocat/42", uc.Username, uc.InstallationID)
	}
}

func TestBearerAuthMiddleware_RejectsBadToken(t *testing.T) {
	srv := newTestServer(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := bearerAuthMiddleware(srv.app.Gate)(next)

	for _, header := range []string{"Bearer garbage", "Basic dXNlcjpwYXNz", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
		if called {
			t.Errorf("header %q: handler must not run", header)
		}
		resp := decodeResponse(t, rec)
		if resp["code"] != "unauthorized" {
			t.Errorf("header %q: code = %v, want unauthorized", header, resp["code"])
		}
	}
}

// The assembled stack rejects a bad bearer before any route runs, even one
// that allows anonymous access.
func TestApplyMiddleware_BadBearerRejectedEverywhere(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 on health with bad bearer, got %d", rec.Code)
	}

	// The same route is fine without credentials.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on anonymous health, got %d", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected correlation ID on every response")
	}
}
