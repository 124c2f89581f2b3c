package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// UserStore implements interfaces.UserStore with a mutex-guarded map keyed by
// username.
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]*models.UserRecord
	logger *common.Logger
}

// NewUserStore creates a memory-backed UserStore.
func NewUserStore(logger *common.Logger) *UserStore {
	return &UserStore{
		users:  make(map[string]*models.UserRecord),
		logger: logger,
	}
}

func (s *UserStore) Upsert(_ context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	if user.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.Username]
	if !ok {
		stored := *user
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now()
		}
		s.users[user.Username] = &stored
		copied := stored
		return &copied, nil
	}

	existing.Merge(user)
	copied := *existing
	return &copied, nil
}

func (s *UserStore) Get(_ context.Context, username string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *UserStore) List(_ context.Context) ([]*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.UserRecord, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *UserStore) SetAdmin(_ context.Context, username string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	user.IsAdmin = isAdmin
	return nil
}

func (s *UserStore) SetInstallation(_ context.Context, username string, installationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	user.InstallationID = installationID
	return nil
}

func (s *UserStore) ClearInstallation(_ context.Context, installationID int64) (int, error) {
	if installationID == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, user := range s.users {
		if user.InstallationID == installationID {
			user.InstallationID = 0
			cleared++
		}
	}
	return cleared, nil
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
