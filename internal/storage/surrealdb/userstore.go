package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// UserStore implements interfaces.UserStore using SurrealDB, keyed by
// username.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewUserStore creates a SurrealDB-backed UserStore.
func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

func (s *UserStore) Upsert(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	if user.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	existing, err := s.Get(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	var stored models.UserRecord
	if existing == nil {
		stored = *user
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now()
		}
	} else {
		stored = *existing
		stored.Merge(user)
	}

	sql := "UPSERT type::record('user', $id) CONTENT $user"
	vars := map[string]any{"id": stored.Username, "user": stored}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
		if err == nil {
			copied := stored
			return &copied, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to upsert user after retries: %w", lastErr)
}

func (s *UserStore) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	record, err := surrealdb.Select[models.UserRecord](ctx, s.db, surrealmodels.NewRecordID("user", username))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if record == nil || record.Username == "" {
		return nil, nil
	}
	return record, nil
}

func (s *UserStore) List(ctx context.Context) ([]*models.UserRecord, error) {
	sql := "SELECT * FROM user ORDER BY username ASC"

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []*models.UserRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			users = append(users, &(*results)[0].Result[i])
		}
	}
	return users, nil
}

func (s *UserStore) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	sql := "UPDATE $rid SET is_admin = $is_admin RETURN AFTER"
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID("user", username),
		"is_admin": isAdmin,
	}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

func (s *UserStore) SetInstallation(ctx context.Context, username string, installationID int64) error {
	sql := "UPDATE $rid SET installation_id = $installation_id RETURN AFTER"
	vars := map[string]any{
		"rid":             surrealmodels.NewRecordID("user", username),
		"installation_id": installationID,
	}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to set installation: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

func (s *UserStore) ClearInstallation(ctx context.Context, installationID int64) (int, error) {
	if installationID == 0 {
		return 0, nil
	}

	sql := "UPDATE user SET installation_id = 0 WHERE installation_id = $installation_id RETURN AFTER"
	vars := map[string]any{"installation_id": installationID}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to clear installation: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
