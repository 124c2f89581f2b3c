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

// sessionSelectFields lists the fields to select from session rows.
const sessionSelectFields = "session_id, username, access_token, installation_id, created_at, expires_at"

// sessionRow is the DB-level representation of a login session. The access
// token is excluded from models.Session JSON, so the row carries it explicitly.
type sessionRow struct {
	SessionID      string    `json:"session_id"`
	Username       string    `json:"username"`
	AccessToken    string    `json:"access_token"`
	InstallationID int64     `json:"installation_id"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (r *sessionRow) toModel() *models.Session {
	return &models.Session{
		ID:             r.SessionID,
		Username:       r.Username,
		AccessToken:    r.AccessToken,
		InstallationID: r.InstallationID,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

// SessionStore implements interfaces.SessionStore using SurrealDB.
type SessionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	ttl    time.Duration
}

// NewSessionStore creates a SessionStore with the given session lifetime.
func NewSessionStore(db *surrealdb.DB, logger *common.Logger, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, logger: logger, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, username, accessToken string, installationID int64) (string, error) {
	id, err := models.NewSessionID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	row := sessionRow{
		SessionID:      id,
		Username:       username,
		AccessToken:    accessToken,
		InstallationID: installationID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	// Delete-then-insert in one transaction keeps at most one session per user
	// even with concurrent logins.
	sql := `BEGIN TRANSACTION;
		DELETE session WHERE username = $username;
		CREATE type::record('session', $id) CONTENT $session;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"username": username,
		"id":       row.SessionID,
		"session":  row,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Debug().Str("username", username).Msg("Session created")
	return row.SessionID, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	sql := "SELECT " + sessionSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("session", sessionID),
	}

	results, err := surrealdb.Query[[]sessionRow](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}

	session := (*results)[0].Result[0].toModel()
	if session.IsExpired(time.Now()) {
		return nil, nil
	}
	return session, nil
}

func (s *SessionStore) FindByUsername(ctx context.Context, username string) (string, error) {
	sql := "SELECT session_id FROM session WHERE username = $username AND expires_at > $now LIMIT 1"
	vars := map[string]any{
		"username": username,
		"now":      time.Now(),
	}

	results, err := surrealdb.Query[[]sessionRow](ctx, s.db, sql, vars)
	if err != nil {
		return "", fmt.Errorf("failed to find session by username: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", nil
	}
	return (*results)[0].Result[0].SessionID, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	sql := "DELETE $rid RETURN BEFORE"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("session", sessionID),
	}

	results, err := surrealdb.Query[[]sessionRow](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

func (s *SessionStore) Refresh(ctx context.Context, sessionID string) (bool, error) {
	now := time.Now()

	// The expiry guard keeps expired sessions dead: only a live row is
	// extended, and an expired one is removed in the same transaction so it
	// can never be resurrected.
	sql := `BEGIN TRANSACTION;
		UPDATE $rid SET expires_at = $new_expiry WHERE expires_at > $now RETURN AFTER;
		DELETE $rid WHERE expires_at <= $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("session", sessionID),
		"new_expiry": now.Add(s.ttl),
		"now":        now,
	}

	results, err := surrealdb.Query[[]sessionRow](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to refresh session: %w", err)
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

func (s *SessionStore) CleanupExpired(ctx context.Context) (int, error) {
	sql := "DELETE session WHERE expires_at <= $now RETURN BEFORE"
	vars := map[string]any{"now": time.Now()}

	results, err := surrealdb.Query[[]sessionRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}

// Compile-time check
var _ interfaces.SessionStore = (*SessionStore)(nil)
