package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// ReadmeStore implements interfaces.ReadmeStore using SurrealDB.
type ReadmeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewReadmeStore creates a SurrealDB-backed ReadmeStore.
func NewReadmeStore(db *surrealdb.DB, logger *common.Logger) *ReadmeStore {
	return &ReadmeStore{db: db, logger: logger}
}

func (s *ReadmeStore) Save(ctx context.Context, gen *models.ReadmeGeneration) (*models.ReadmeGeneration, error) {
	if gen.Username == "" || gen.Repository == "" {
		return nil, fmt.Errorf("username and repository are required")
	}

	stored := *gen
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("gen_%s", uuid.New().String()[:8])
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	sql := "CREATE type::record('readme', $id) CONTENT $gen"
	vars := map[string]any{"id": stored.ID, "gen": stored}

	if _, err := surrealdb.Query[[]models.ReadmeGeneration](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to save generation: %w", err)
	}

	copied := stored
	return &copied, nil
}

func (s *ReadmeStore) Get(ctx context.Context, id string) (*models.ReadmeGeneration, error) {
	record, err := surrealdb.Select[models.ReadmeGeneration](ctx, s.db, surrealmodels.NewRecordID("readme", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select generation: %w", err)
	}
	if record == nil || record.ID == "" {
		return nil, nil
	}
	return record, nil
}

func (s *ReadmeStore) ListByUser(ctx context.Context, username string, opts interfaces.ReadmeListOptions) ([]*models.ReadmeGeneration, error) {
	sql := "SELECT * FROM readme WHERE username = $username"
	vars := map[string]any{"username": username}
	if opts.Repository != "" {
		sql += " AND repository = $repository"
		vars["repository"] = opts.Repository
	}
	sql += " ORDER BY created_at DESC, version DESC"
	if opts.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = opts.Limit
	}

	results, err := surrealdb.Query[[]models.ReadmeGeneration](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	var gens []*models.ReadmeGeneration
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			gens = append(gens, &(*results)[0].Result[i])
		}
	}
	return gens, nil
}

func (s *ReadmeStore) LatestVersion(ctx context.Context, username, repository string) (int, error) {
	sql := "SELECT * FROM readme WHERE username = $username AND repository = $repository ORDER BY version DESC LIMIT 1"
	vars := map[string]any{"username": username, "repository": repository}

	results, err := surrealdb.Query[[]models.ReadmeGeneration](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve latest version: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Version, nil
}

// Compile-time check
var _ interfaces.ReadmeStore = (*ReadmeStore)(nil)
