// Package memory implements storage with in-process maps. State is lost on
// restart, which suits development and tests; production runs use surrealdb.
package memory

import (
	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
)

// Manager implements interfaces.StorageManager with in-process stores.
type Manager struct {
	sessions *SessionStore
	users    *UserStore
	readmes  *ReadmeStore
	logger   *common.Logger
}

// NewManager creates a memory-backed StorageManager.
func NewManager(logger *common.Logger, config *common.Config) *Manager {
	m := &Manager{
		sessions: NewSessionStore(logger, config.Auth.GetSessionTTL()),
		users:    NewUserStore(logger),
		readmes:  NewReadmeStore(logger),
		logger:   logger,
	}

	logger.Info().
		Dur("session_ttl", config.Auth.GetSessionTTL()).
		Msg("Memory storage manager initialized")

	return m
}

func (m *Manager) SessionStore() interfaces.SessionStore {
	return m.sessions
}

func (m *Manager) UserStore() interfaces.UserStore {
	return m.users
}

func (m *Manager) ReadmeStore() interfaces.ReadmeStore {
	return m.readmes
}

func (m *Manager) Close() error {
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
