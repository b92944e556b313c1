package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyDigestJob summarizes yesterday's study activity per learner.
// The digest is emitted as structured log lines for the delivery
// pipeline; nothing here mutates learner state.
type DailyDigestJob struct {
	learnerRepo progress.Repository
	sessionRepo session.Repository
	logger      *slog.Logger

	// digestLimit bounds how many learners get a digest per run.
	digestLimit int
}

// NewDailyDigestJob creates the job.
func NewDailyDigestJob(learnerRepo progress.Repository, sessionRepo session.Repository, logger *slog.Logger) *DailyDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyDigestJob{
		learnerRepo: learnerRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
		digestLimit: 100,
	}
}

// Name returns the unique name of the job.
func (j *DailyDigestJob) Name() string { return "daily_digest" }

// Description returns a human-readable description of the job.
func (j *DailyDigestJob) Description() string {
	return "Summarizes the previous day's study sessions per learner"
}

// Run executes the job.
func (j *DailyDigestJob) Run(ctx context.Context) error {
	learners, err := j.learnerRepo.TopByXP(ctx, j.digestLimit)
	if err != nil {
		return fmt.Errorf("daily_digest: list learners: %w", err)
	}

	since := time.Now().Add(-24 * time.Hour)
	digests := 0

	for _, l := range learners {
		sessions, err := j.sessionRepo.ListFinalized(ctx, l.ID, since, 50)
		if err != nil {
			j.logger.Warn("daily digest skipped for learner",
				"learner_id", l.ID, "error", err)
			continue
		}
		if len(sessions) == 0 {
			continue
		}

		var studySec, effectiveSec, pages int
		completed := 0
		for _, s := range sessions {
			analytics := s.Recompute()
			studySec += s.ElapsedSec
			effectiveSec += analytics.EffectiveStudyTimeSec
			pages += s.PagesRead
			if s.Status == session.StatusCompleted {
				completed++
			}
		}

		digests++
		j.logger.Info("daily digest",
			"learner_id", l.ID,
			"sessions", len(sessions),
			"completed", completed,
			"study_sec", studySec,
			"effective_sec", effectiveSec,
			"pages_read", pages,
			"streak", l.CurrentStreak,
			"total_xp", int(l.TotalXP))
	}

	j.logger.Info("daily digest completed",
		"learners_scanned", len(learners),
		"digests_emitted", digests)
	return nil
}
