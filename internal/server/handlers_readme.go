package server

import (
	"net/http"

	"github.com/quillhq/quill/internal/clients/github"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// handleRepositoryList handles GET /api/repositories.
// Lists every repository the caller's installation can reach, through an
// installation token minted fresh for this request.
func (s *Server) handleRepositoryList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	client, err := s.app.Gate.GitHubClient(r.Context(), uc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	repos, err := client.ListRepositories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"repositories": repos,
		"total_count":  len(repos),
	})
}

type generateRequest struct {
	Repository   string                 `json:"repository"`
	Sections     []models.ReadmeSection `json:"sections,omitempty"`
	BadgeStyle   string                 `json:"badge_style,omitempty"`
	Instructions string                 `json:"instructions,omitempty"`
}

// handleReadmeGenerate handles POST /api/readme/generate.
func (s *Server) handleReadmeGenerate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	if s.app.GeminiClient == nil {
		WriteError(w, http.StatusServiceUnavailable, "README generation is not configured")
		return
	}

	var req generateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Repository == "" {
		WriteError(w, http.StatusBadRequest, "repository is required")
		return
	}

	owner, repo, err := github.ParseRepository(req.Repository)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	gen, err := s.app.ReadmeService.Generate(r.Context(), uc, owner, repo, interfaces.GenerateOptions{
		Sections:     req.Sections,
		BadgeStyle:   req.BadgeStyle,
		Instructions: req.Instructions,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, gen)
}

type refineRequest struct {
	Content  string `json:"content"`
	Feedback string `json:"feedback"`
}

// handleReadmeRefine handles POST /api/readme/refine.
func (s *Server) handleReadmeRefine(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	if s.app.GeminiClient == nil {
		WriteError(w, http.StatusServiceUnavailable, "README refinement is not configured")
		return
	}

	var req refineRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	gen, err := s.app.ReadmeService.Refine(r.Context(), uc, req.Content, req.Feedback)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, gen)
}

type saveRequest struct {
	Repository string `json:"repository"`
	Content    string `json:"content"`
	Path       string `json:"path,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Message    string `json:"message,omitempty"`
}

// handleReadmeSave handles POST /api/readme/save.
func (s *Server) handleReadmeSave(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req saveRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Repository == "" {
		WriteError(w, http.StatusBadRequest, "repository is required")
		return
	}

	owner, repo, err := github.ParseRepository(req.Repository)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := s.app.ReadmeService.Save(r.Context(), uc, owner, repo, req.Content, interfaces.SaveOptions{
		Path:    req.Path,
		Branch:  req.Branch,
		Message: req.Message,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleReadmeHistory handles GET /api/readme/history.
// Optional query parameters: repository (owner/repo filter) and limit.
func (s *Server) handleReadmeHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uc, ok := requireUser(w, r)
	if !ok {
		return
	}

	opts := interfaces.ReadmeListOptions{
		Repository: r.URL.Query().Get("repository"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := parseInt(l); err == nil && v > 0 && v <= 200 {
			opts.Limit = v
		}
	}

	gens, err := s.app.ReadmeService.History(r.Context(), uc.Username, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"generations": gens,
		"total_count": len(gens),
	})
}
