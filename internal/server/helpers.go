package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quillhq/quill/internal/clients/github"
	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/services/auth"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/admin/users/{username}/make-admin, calling
// PathParam(r, "/api/admin/users/", "/make-admin") extracts the {username} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix, return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// requireUser returns the verified caller identity placed in the request
// context by the bearer middleware. Anonymous requests get a 401 and false.
func requireUser(w http.ResponseWriter, r *http.Request) (*common.UserContext, bool) {
	uc := common.UserContextFromContext(r.Context())
	if uc == nil || uc.Username == "" {
		WriteErrorWithCode(w, http.StatusUnauthorized, "authentication required", "unauthorized")
		return nil, false
	}
	return uc, true
}

// writeServiceError maps service-layer errors onto HTTP statuses and stable
// error codes. The code field lets the frontend route the user: invalid_token
// and login_required restart the login, installation_required sends them to
// the App install page.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation    *auth.ValidationError
		csrf          *auth.CsrfError
		invalidToken  *auth.InvalidTokenError
		tooOld        *auth.TooOldError
		needsInstall  *auth.InstallationRequiredError
		unauthorized  *auth.UnauthorizedError
		forbidden     *auth.ForbiddenError
		notFound      *auth.NotFoundError
		repoParse     *github.RepoParseError
		forbiddenRepo *github.ForbiddenRepoError
		oauthFailed   *github.OAuthError
		upstream      *github.UpstreamAuthError
		apiFailed     *github.APIError
		misconfigured *github.ConfigurationError
	)

	switch {
	case errors.As(err, &validation):
		WriteError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &csrf):
		WriteErrorWithCode(w, http.StatusBadRequest, "invalid request, please retry login", "state_mismatch")
	case errors.As(err, &repoParse):
		WriteError(w, http.StatusBadRequest, repoParse.Error())
	case errors.As(err, &invalidToken):
		WriteErrorWithCode(w, http.StatusUnauthorized, invalidToken.Error(), "invalid_token")
	case errors.As(err, &tooOld):
		WriteErrorWithCode(w, http.StatusUnauthorized, tooOld.Error(), "login_required")
	case errors.As(err, &needsInstall):
		WriteErrorWithCode(w, http.StatusUnauthorized, needsInstall.Error(), "installation_required")
	case errors.As(err, &unauthorized):
		WriteErrorWithCode(w, http.StatusUnauthorized, unauthorized.Error(), "unauthorized")
	case errors.As(err, &forbidden):
		WriteError(w, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &forbiddenRepo):
		WriteError(w, http.StatusForbidden, forbiddenRepo.Error())
	case errors.As(err, &notFound):
		WriteError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &oauthFailed):
		WriteErrorWithCode(w, http.StatusBadRequest, oauthFailed.Error(), "github_rejected")
	case errors.As(err, &upstream):
		if upstream.Retryable() {
			WriteErrorWithCode(w, http.StatusBadGateway, "GitHub is unavailable, try again shortly", "github_unavailable")
		} else {
			WriteErrorWithCode(w, http.StatusBadRequest, upstream.Error(), "github_rejected")
		}
	case errors.As(err, &apiFailed):
		if apiFailed.IsNotFound() {
			WriteError(w, http.StatusNotFound, apiFailed.Error())
		} else {
			WriteError(w, http.StatusBadGateway, apiFailed.Error())
		}
	case errors.As(err, &misconfigured):
		WriteError(w, http.StatusInternalServerError, misconfigured.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
