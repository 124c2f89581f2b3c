// Package interfaces defines service contracts for Quill
package interfaces

import (
	"context"

	"github.com/quillhq/quill/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	// Storage accessors
	SessionStore() SessionStore
	UserStore() UserStore
	ReadmeStore() ReadmeStore

	// Lifecycle
	Close() error
}

// SessionStore manages login sessions. A user has at most one live session:
// Create replaces any session previously held by the same username.
type SessionStore interface {
	// Create stores a new session and returns its generated ID. Any existing
	// session for the same username is removed in the same operation.
	Create(ctx context.Context, username, accessToken string, installationID int64) (string, error)

	// Get retrieves a session by ID. Expired or missing sessions return nil.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// FindByUsername returns the ID of the user's live session, or "" when
	// the user has none.
	FindByUsername(ctx context.Context, username string) (string, error)

	// Delete removes a session. Returns false when no session existed.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// Refresh extends a live session's expiry by the store's TTL. Expired or
	// missing sessions are not resurrected and return false.
	Refresh(ctx context.Context, sessionID string) (bool, error)

	// CleanupExpired removes all sessions past their expiry and returns the
	// number removed.
	CleanupExpired(ctx context.Context) (int, error)
}

// UserStore manages persistent user records keyed by GitHub username.
type UserStore interface {
	// Upsert merges the record into any existing one for the same username
	// and returns the stored result. See models.UserRecord.Merge for the
	// merge rules.
	Upsert(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error)

	// Get retrieves a user by username. Missing users return nil.
	Get(ctx context.Context, username string) (*models.UserRecord, error)

	// List returns all user records.
	List(ctx context.Context) ([]*models.UserRecord, error)

	// SetAdmin flips the admin flag on an existing user.
	SetAdmin(ctx context.Context, username string, isAdmin bool) error

	// SetInstallation records the GitHub App installation owned by the user.
	// Zero clears it.
	SetInstallation(ctx context.Context, username string, installationID int64) error

	// ClearInstallation removes the given installation from every user that
	// holds it and returns the number of users updated.
	ClearInstallation(ctx context.Context, installationID int64) (int, error)
}

// ReadmeStore persists generated README documents.
type ReadmeStore interface {
	// Save stores a generation record and returns it with its assigned ID.
	Save(ctx context.Context, gen *models.ReadmeGeneration) (*models.ReadmeGeneration, error)

	// Get retrieves a generation by ID. Missing records return nil.
	Get(ctx context.Context, id string) (*models.ReadmeGeneration, error)

	// ListByUser returns a user's generations, newest first.
	ListByUser(ctx context.Context, username string, opts ReadmeListOptions) ([]*models.ReadmeGeneration, error)

	// LatestVersion returns the highest stored version for a user/repository
	// pair, or 0 when none exist.
	LatestVersion(ctx context.Context, username, repository string) (int, error)
}

// ReadmeListOptions filters generation history queries.
type ReadmeListOptions struct {
	Repository string // Optional owner/repo filter
	Limit      int    // Max results to return (0 = no limit)
}
