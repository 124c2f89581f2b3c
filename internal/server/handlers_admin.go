package server

import (
	"fmt"
	"net/http"
)

// handleAdminListUsers handles GET /api/admin/users.
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.app.Gate.RequireAdmin(r.Context(), uc); err != nil {
		writeServiceError(w, err)
		return
	}

	users, err := s.app.AuthService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users":       users,
		"total_count": len(users),
	})
}

// handleAdminSetRole handles POST /api/admin/users/{username}/make-admin and
// POST /api/admin/users/{username}/remove-admin.
func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request, username string, grant bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.app.Gate.RequireAdmin(r.Context(), uc); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.app.AuthService.SetAdminRole(r.Context(), uc.Username, username, grant); err != nil {
		writeServiceError(w, err)
		return
	}

	verb := "granted to"
	if !grant {
		verb = "removed from"
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Admin role %s %s", verb, username),
	})
}

// handleAdminUserStatus handles GET /api/admin/users/{username}/status.
func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request, username string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.app.Gate.RequireAdmin(r.Context(), uc); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := s.app.Storage.UserStore().Get(r.Context(), username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if user == nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("user %q not found", username))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"username":        user.Username,
		"is_admin":        user.IsAdmin,
		"installation_id": user.InstallationID,
	})
}
