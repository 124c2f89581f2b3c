package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/common"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)
	mux.HandleFunc("/debug/memstats", s.handleMemstats)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/callback", s.handleAuthCallback)
	mux.HandleFunc("/api/auth/verify-token", s.handleVerifyToken)
	mux.HandleFunc("/api/auth/refresh-token", s.handleRefreshToken)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)
	mux.HandleFunc("/api/auth/me", s.handleCurrentUser)

	// Repositories
	mux.HandleFunc("/api/repositories", s.handleRepositoryList)

	// README
	mux.HandleFunc("/api/readme/generate", s.handleReadmeGenerate)
	mux.HandleFunc("/api/readme/refine", s.handleReadmeRefine)
	mux.HandleFunc("/api/readme/save", s.handleReadmeSave)
	mux.HandleFunc("/api/readme/history", s.handleReadmeHistory)

	// Webhooks
	mux.HandleFunc("/api/webhooks/github", s.handleWebhookGitHub)

	// Admin
	mux.HandleFunc("/api/admin/users/", s.routeAdminUsers) // handles {username}/make-admin etc.
	mux.HandleFunc("/api/admin/users", s.handleAdminListUsers)
}

// routeAdminUsers dispatches /api/admin/users/{username}/{action} to the appropriate handler.
func (s *Server) routeAdminUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if path == "" {
		s.handleAdminListUsers(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 2 {
		switch parts[1] {
		case "make-admin":
			s.handleAdminSetRole(w, r, parts[0], true)
			return
		case "remove-admin":
			s.handleAdminSetRole(w, r, parts[0], false)
			return
		case "status":
			s.handleAdminUserStatus(w, r, parts[0])
			return
		}
	}

	WriteError(w, http.StatusNotFound, "Not found")
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":       s.app.Config.Environment,
		"frontend_url":      s.app.Config.Server.FrontendURL,
		"storage_backend":   s.app.Config.Storage.Backend,
		"storage_namespace": s.app.Config.Storage.Namespace,
		"storage_database":  s.app.Config.Storage.Database,
		"logging_level":     s.app.Config.Logging.Level,
		"github_app_id":     s.app.Config.GitHub.AppID,
		"github_app_name":   s.app.Config.GitHub.AppName,
		"github_client_id":  maskSecret(s.app.Config.GitHub.ClientID),
		"webhook_secret":    maskSecret(s.app.Config.GitHub.WebhookSecret),
		"jwt_secret":        maskSecret(s.app.Config.Auth.JWTSecret),
		"app_configured":    s.app.Config.GitHubAppConfigured(),
		"oauth_configured":  s.app.Config.OAuthConfigured(),
		"gemini_configured": s.app.GeminiClient != nil,
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"commit":     common.GetGitCommit(),
		"uptime":     uptime.String(),
		"started_at": s.app.StartupTime,
	})
}

func (s *Server) handleMemstats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"heap_alloc_bytes": m.HeapAlloc,
		"heap_inuse_bytes": m.HeapInuse,
		"heap_idle_bytes":  m.HeapIdle,
		"sys_bytes":        m.Sys,
		"num_gc":           m.NumGC,
		"heap_alloc_mb":    float64(m.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":    float64(m.HeapInuse) / 1024 / 1024,
		"heap_idle_mb":     float64(m.HeapIdle) / 1024 / 1024,
		"sys_mb":           float64(m.Sys) / 1024 / 1024,
	})
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

func parseInt(s string) (int, error) {
	n, err := json.Number(s).Int64()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
