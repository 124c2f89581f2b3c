package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// SessionStore implements interfaces.SessionStore with a mutex-guarded map.
// The byUser index enforces the one-live-session-per-user rule: Create always
// removes the user's previous session inside the same critical section.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byUser   map[string]string
	ttl      time.Duration
	logger   *common.Logger
}

// NewSessionStore creates a SessionStore with the given session lifetime.
func NewSessionStore(logger *common.Logger, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
		byUser:   make(map[string]string),
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *SessionStore) Create(_ context.Context, username, accessToken string, installationID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := models.NewSessionID()
	if err != nil {
		return "", err
	}

	if old, ok := s.byUser[username]; ok {
		delete(s.sessions, old)
	}

	now := time.Now()
	session := &models.Session{
		ID:             id,
		Username:       username,
		AccessToken:    accessToken,
		InstallationID: installationID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	s.sessions[session.ID] = session
	s.byUser[username] = session.ID

	s.logger.Debug().Str("username", username).Msg("Session created")
	return session.ID, nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.IsExpired(time.Now()) {
		return nil, nil
	}

	copied := *session
	return &copied, nil
}

func (s *SessionStore) FindByUsername(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[username]
	if !ok {
		return "", nil
	}
	session, ok := s.sessions[id]
	if !ok || session.IsExpired(time.Now()) {
		return "", nil
	}
	return id, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	if s.byUser[session.Username] == sessionID {
		delete(s.byUser, session.Username)
	}
	return true, nil
}

func (s *SessionStore) Refresh(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	now := time.Now()
	if session.IsExpired(now) {
		// Expired sessions are removed, never resurrected.
		delete(s.sessions, sessionID)
		if s.byUser[session.Username] == sessionID {
			delete(s.byUser, session.Username)
		}
		return false, nil
	}
	session.ExpiresAt = now.Add(s.ttl)
	return true, nil
}

func (s *SessionStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, session := range s.sessions {
		if !session.IsExpired(now) {
			continue
		}
		delete(s.sessions, id)
		if s.byUser[session.Username] == id {
			delete(s.byUser, session.Username)
		}
		removed++
	}
	return removed, nil
}

// Compile-time check
var _ interfaces.SessionStore = (*SessionStore)(nil)
