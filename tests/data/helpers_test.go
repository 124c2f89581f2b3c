package data

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/storage/surrealdb"
	tcommon "github.com/quillhq/quill/tests/common"
)

// testManager creates a StorageManager connected to the shared SurrealDB
// container, with a unique database per test for isolation.
func testManager(t *testing.T) interfaces.StorageManager {
	return testManagerWithConfig(t, nil)
}

// testManagerWithConfig is testManager with a hook applied to the config
// before the manager connects. Session TTL is fixed at construction, so
// tests that need expired sessions adjust it here.
func testManagerWithConfig(t *testing.T, mutate func(*common.Config)) interfaces.StorageManager {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)

	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Storage.Backend = "surrealdb"
	cfg.Storage.Address = sc.Address()
	cfg.Storage.Namespace = "quill_data_test"
	cfg.Storage.Database = fmt.Sprintf("d_%s_%d",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()),
		time.Now().UnixNano()%100000)
	if mutate != nil {
		mutate(cfg)
	}

	logger := common.NewSilentLogger()
	mgr, err := surrealdb.NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("create storage manager: %v", err)
	}

	t.Cleanup(func() {
		mgr.Close()
	})

	return mgr
}

// testContext returns a background context.
func testContext() context.Context {
	return context.Background()
}
