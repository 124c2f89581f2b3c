package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// ReadmeStore implements interfaces.ReadmeStore with a mutex-guarded map.
type ReadmeStore struct {
	mu     sync.RWMutex
	gens   map[string]*models.ReadmeGeneration
	logger *common.Logger
}

// NewReadmeStore creates a memory-backed ReadmeStore.
func NewReadmeStore(logger *common.Logger) *ReadmeStore {
	return &ReadmeStore{
		gens:   make(map[string]*models.ReadmeGeneration),
		logger: logger,
	}
}

func (s *ReadmeStore) Save(_ context.Context, gen *models.ReadmeGeneration) (*models.ReadmeGeneration, error) {
	if gen.Username == "" || gen.Repository == "" {
		return nil, fmt.Errorf("username and repository are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *gen
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("gen_%s", uuid.New().String()[:8])
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.gens[stored.ID] = &stored

	copied := stored
	return &copied, nil
}

func (s *ReadmeStore) Get(_ context.Context, id string) (*models.ReadmeGeneration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gen, ok := s.gens[id]
	if !ok {
		return nil, nil
	}
	copied := *gen
	return &copied, nil
}

func (s *ReadmeStore) ListByUser(_ context.Context, username string, opts interfaces.ReadmeListOptions) ([]*models.ReadmeGeneration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gens []*models.ReadmeGeneration
	for _, gen := range s.gens {
		if gen.Username != username {
			continue
		}
		if opts.Repository != "" && gen.Repository != opts.Repository {
			continue
		}
		copied := *gen
		gens = append(gens, &copied)
	}

	// Newest first, version as tiebreaker for equal timestamps
	sort.Slice(gens, func(i, j int) bool {
		if !gens[i].CreatedAt.Equal(gens[j].CreatedAt) {
			return gens[i].CreatedAt.After(gens[j].CreatedAt)
		}
		return gens[i].Version > gens[j].Version
	})

	if opts.Limit > 0 && len(gens) > opts.Limit {
		gens = gens[:opts.Limit]
	}
	return gens, nil
}

func (s *ReadmeStore) LatestVersion(_ context.Context, username, repository string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for _, gen := range s.gens {
		if gen.Username == username && gen.Repository == repository && gen.Version > latest {
			latest = gen.Version
		}
	}
	return latest, nil
}

// Compile-time check
var _ interfaces.ReadmeStore = (*ReadmeStore)(nil)
