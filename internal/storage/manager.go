// Package storage selects and constructs the persistence backend.
package storage

import (
	"fmt"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/storage/memory"
	"github.com/quillhq/quill/internal/storage/surrealdb"
)

// Supported storage backends.
const (
	BackendMemory    = "memory"
	BackendSurrealDB = "surrealdb"
)

// NewStorageManager creates the StorageManager named by config.Storage.Backend.
// The memory backend is single-process and loses state on restart; SurrealDB
// is the shared production backend.
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Backend {
	case BackendMemory, "":
		return memory.NewManager(logger, config), nil
	case BackendSurrealDB:
		return surrealdb.NewManager(logger, config)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s, %s)", config.Storage.Backend, BackendMemory, BackendSurrealDB)
	}
}
