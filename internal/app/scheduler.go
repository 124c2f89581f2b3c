package app

import (
	"context"
	"time"

	"github.com/quillhq/quill/internal/common"
	"github.com/quillhq/quill/internal/interfaces"
)

// sessionSweepInterval is how often expired sessions are purged.
const sessionSweepInterval = 15 * time.Minute

// startSessionSweeper deletes expired sessions on a fixed interval.
// Sessions already die logically on read; the sweeper keeps the store from
// accumulating dead rows.
func startSessionSweeper(ctx context.Context, storage interfaces.StorageManager, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Session sweeper: stopped")
			return
		case <-ticker.C:
			sweepSessions(ctx, storage, logger)
		}
	}
}

func sweepSessions(ctx context.Context, storage interfaces.StorageManager, logger *common.Logger) {
	start := time.Now()

	removed, err := storage.SessionStore().CleanupExpired(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Session sweeper: cleanup failed")
		return
	}
	if removed == 0 {
		return
	}

	logger.Info().
		Int("removed", removed).
		Dur("elapsed", time.Since(start)).
		Msg("Session sweeper: expired sessions removed")
}
