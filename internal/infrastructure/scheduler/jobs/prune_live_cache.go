// Package jobs contains implementations of scheduled jobs for FocusFlow Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE LIVE CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// PruneLiveCacheJob walks the live session index and drops entries whose
// snapshots have expired. Snapshots carry a TTL, so a crashed instance
// leaves only dangling index members behind; listing the index forces
// the cache to reconcile them.
type PruneLiveCacheJob struct {
	cache  session.LiveCache
	logger *slog.Logger

	runs atomic.Int64
}

// NewPruneLiveCacheJob creates the job.
func NewPruneLiveCacheJob(cache session.LiveCache, logger *slog.Logger) *PruneLiveCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneLiveCacheJob{cache: cache, logger: logger}
}

// Name returns the unique name of the job.
func (j *PruneLiveCacheJob) Name() string { return "prune_live_cache" }

// Description returns a human-readable description of the job.
func (j *PruneLiveCacheJob) Description() string {
	return "Reconciles the live session index with expired snapshots"
}

// Run executes the job.
func (j *PruneLiveCacheJob) Run(ctx context.Context) error {
	j.runs.Add(1)

	ids, err := j.cache.ActiveSessionIDs(ctx)
	if err != nil {
		return fmt.Errorf("prune_live_cache: list active sessions: %w", err)
	}

	j.logger.Debug("live cache reconciled", "live_sessions", len(ids))
	return nil
}

// Runs returns how many times the job has executed.
func (j *PruneLiveCacheJob) Runs() int64 {
	return j.runs.Load()
}
