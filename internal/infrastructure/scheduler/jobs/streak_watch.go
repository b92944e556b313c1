package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK WATCH JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakWatchJob scans top learners in the evening and reports those
// whose streak ends at midnight without a session today. The report is
// a structured log line the notification pipeline tails; the streak
// itself resets lazily on the next completed session.
type StreakWatchJob struct {
	learnerRepo progress.Repository
	clock       timeutil.Clock
	logger      *slog.Logger

	// scanLimit bounds how many learners a single run inspects.
	scanLimit int

	lastAtRisk atomic.Int64
}

// NewStreakWatchJob creates the job.
func NewStreakWatchJob(learnerRepo progress.Repository, clock timeutil.Clock, logger *slog.Logger) *StreakWatchJob {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreakWatchJob{
		learnerRepo: learnerRepo,
		clock:       clock,
		logger:      logger,
		scanLimit:   100,
	}
}

// Name returns the unique name of the job.
func (j *StreakWatchJob) Name() string { return "streak_watch" }

// Description returns a human-readable description of the job.
func (j *StreakWatchJob) Description() string {
	return "Reports learners whose daily streak expires at midnight"
}

// Run executes the job.
func (j *StreakWatchJob) Run(ctx context.Context) error {
	learners, err := j.learnerRepo.TopByXP(ctx, j.scanLimit)
	if err != nil {
		return fmt.Errorf("streak_watch: list learners: %w", err)
	}

	now := j.clock.Now()
	today := timeutil.StartOfDay(now)
	atRisk := 0

	for _, l := range learners {
		if l.CurrentStreak == 0 || !l.StreakAlive(now) {
			continue
		}
		// Alive streak with no session today ends at midnight.
		if l.LastStudyDay.Before(today) {
			atRisk++
			j.logger.Info("streak at risk",
				"learner_id", l.ID,
				"current_streak", l.CurrentStreak,
				"last_study_day", l.LastStudyDay.Format(time.DateOnly))
		}
	}

	j.lastAtRisk.Store(int64(atRisk))
	j.logger.Info("streak watch completed",
		"scanned", len(learners),
		"at_risk", atRisk)
	return nil
}

// LastAtRisk returns the at-risk count from the most recent run.
func (j *StreakWatchJob) LastAtRisk() int64 {
	return j.lastAtRisk.Load()
}
