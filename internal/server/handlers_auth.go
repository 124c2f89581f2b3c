package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/services/auth"
)

const (
	stateCookieName   = "oauth_state"
	sessionCookieName = "quill_session"
)

// --- Cookie helpers ---

// setStateCookie stores the CSRF state beside the OAuth redirect. The lifetime
// matches the expiry baked into the signed state value.
func (s *Server) setStateCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(s.app.Config.Auth.GetStateTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.app.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.app.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie binds the browser to the server-side session. The bearer
// token is what authenticates API calls; this cookie only lets the
// installation callback recognize a user who is mid-flow.
func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.app.Config.Auth.GetSessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.app.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.app.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// --- Redirect helpers ---

// redirectToken sends the browser to the frontend callback page with the
// bearer token. The frontend stores it and uses it for API calls from there.
func (s *Server) redirectToken(w http.ResponseWriter, r *http.Request, token string) {
	target := s.app.Config.Server.FrontendURL + "/auth/callback?token=" + url.QueryEscape(token)
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectError sends the browser to the frontend callback page with a
// machine-readable error code.
func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	target := s.app.Config.Server.FrontendURL + "/auth/callback?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}

// parseInstallationID parses the installation_id query value. Absent is zero.
func parseInstallationID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// --- Auth handlers ---

// handleAuthLogin handles GET /api/auth/login.
// Returns the GitHub authorize URL plus the App install URL and plants the
// CSRF state cookie. A caller already holding a valid bearer gets a
// short-circuit response instead of a new OAuth round.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if uc := common.UserContextFromContext(r.Context()); uc != nil && uc.Username != "" {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": true,
			"username":      uc.Username,
		})
		return
	}

	start, err := s.app.AuthService.BeginLogin(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.setStateCookie(w, start.State)
	WriteJSON(w, http.StatusOK, map[string]string{
		"auth_url":    start.AuthorizeURL,
		"install_url": s.app.Config.GitHub.InstallURL(),
	})
}

// handleAuthCallback handles GET /api/auth/callback.
// GitHub sends the browser here for both OAuth logins (code+state) and App
// installations (installation_id+setup_action), in either order and sometimes
// combined. Each arm ends in a redirect to the frontend; only malformed
// requests get a JSON error directly.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		s.logger.Info().
			Str("error", errCode).
			Str("description", q.Get("error_description")).
			Msg("OAuth callback rejected by GitHub")
		s.redirectError(w, r, errCode)
		return
	}

	installationID, err := parseInstallationID(q.Get("installation_id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid installation_id")
		return
	}

	switch {
	case q.Get("code") != "":
		s.completeOAuthCallback(w, r, q.Get("code"), q.Get("state"), installationID)
	case installationID != 0:
		s.completeInstallationCallback(w, r, installationID)
	default:
		WriteError(w, http.StatusBadRequest, "missing code or installation_id")
	}
}

// completeOAuthCallback finishes the login arm: state check, code exchange,
// user upsert, session create, bearer issue.
func (s *Server) completeOAuthCallback(w http.ResponseWriter, r *http.Request, code, state string, installationID int64) {
	cookieState := ""
	if c, err := r.Cookie(stateCookieName); err == nil {
		cookieState = c.Value
	}

	result, err := s.app.AuthService.CompleteLogin(r.Context(), code, state, cookieState, installationID)
	if err != nil {
		var csrf *auth.CsrfError
		if errors.As(err, &csrf) {
			writeServiceError(w, err)
			return
		}
		s.logger.Warn().Err(err).Msg("Login failed")
		s.redirectError(w, r, "login_failed")
		return
	}

	s.clearStateCookie(w)
	s.setSessionCookie(w, result.SessionID)
	s.redirectToken(w, r, result.Token)
}

// completeInstallationCallback finishes the install arm. GitHub does not say
// who installed the App, so the user is recognized through the session cookie
// planted at login; without one the user has to log in first.
func (s *Server) completeInstallationCallback(w http.ResponseWriter, r *http.Request, installationID int64) {
	username := ""
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if sess, err := s.app.Storage.SessionStore().Get(r.Context(), c.Value); err == nil && sess != nil {
			username = sess.Username
		}
	}
	if username == "" {
		s.redirectError(w, r, "login_required")
		return
	}

	result, err := s.app.AuthService.CompleteInstallation(r.Context(), username, installationID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("username", username).
			Int64("installation_id", installationID).
			Msg("Installation callback failed")
		s.redirectError(w, r, "install_failed")
		return
	}

	if result.SessionID != "" {
		s.setSessionCookie(w, result.SessionID)
	}
	s.redirectToken(w, r, result.Token)
}

// handleVerifyToken handles POST /api/auth/verify-token.
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	claims, err := s.app.AuthService.VerifyToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":           true,
		"username":        claims.Subject,
		"installation_id": claims.InstallationID,
		"issued_at":       claims.IssuedAt,
		"expires_at":      claims.ExpiresAt,
	})
}

// handleRefreshToken handles POST /api/auth/refresh-token.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	token, claims, err := s.app.AuthService.RefreshToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": claims.ExpiresAt,
	})
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := s.app.AuthService.Logout(r.Context(), uc.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.clearSessionCookie(w)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Logged out successfully",
		"session_deleted": deleted,
	})
}

// handleCurrentUser handles GET /api/auth/me.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := s.app.AuthService.CurrentUser(r.Context(), uc.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, user)
}
