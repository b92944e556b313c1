// Package scheduler runs the background housekeeping jobs of FocusFlow
// Hub: pruning stale live-cache entries, watching learner streaks and
// producing daily digests. Jobs are registered with a Schedule (fixed
// interval or cron expression) and executed by a single run loop that
// sleeps until the earliest due job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNilJob is returned when registering a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrNilSchedule is returned when registering a job without a schedule.
	ErrNilSchedule = errors.New("schedule cannot be nil")

	// ErrJobAlreadyExists is returned on a duplicate job name.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotFound is returned when no job matches the name.
	ErrJobNotFound = errors.New("job not found")

	// ErrSchedulerAlreadyRunning is returned by Start on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned by Stop on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

// Job is one unit of background housekeeping.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the
	// scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description for listings.
	Description() string
}

// JobResult records one job execution.
type JobResult struct {
	JobName     string        `json:"job_name"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration_ns"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`

	// Manual marks runs triggered via RunNow instead of the schedule.
	Manual bool `json:"manual,omitempty"`
}

// JobInfo describes a registered job for the admin API.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int64     `json:"run_count"`
	FailCount   int64     `json:"fail_count"`
}

// jobEntry is the mutable scheduling state of one registered job.
type jobEntry struct {
	job       Job
	schedule  Schedule
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures the Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Timezone for schedule computation (default: UTC).
	Timezone *time.Location

	// MaxHistorySize bounds the retained execution history (default: 200).
	MaxHistorySize int
}

// Scheduler owns the registered jobs and the run loop.
type Scheduler struct {
	logger     *slog.Logger
	timezone   *time.Location
	maxHistory int

	mu      sync.RWMutex
	jobs    map[string]*jobEntry
	history []JobResult
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wakeup chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates an empty scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 200
	}

	return &Scheduler{
		logger:     cfg.Logger.With("component", "scheduler"),
		timezone:   cfg.Timezone,
		maxHistory: cfg.MaxHistorySize,
		jobs:       make(map[string]*jobEntry),
		wakeup:     make(chan struct{}, 1),
	}
}

// Register adds a job. Registration after Start takes effect on the
// next wakeup of the run loop.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	entry := &jobEntry{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.jobs[name] = entry

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", entry.nextRun.Format(time.RFC3339),
	)
	s.poke()
	return nil
}

// Start launches the run loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs", len(s.jobs), "timezone", s.timezone.String())

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels the run loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the run loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// runLoop sleeps until the earliest due job, runs everything due, and
// repeats. A poke from Register re-evaluates the sleep.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.untilNextDue())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wakeup:
		case <-timer.C:
			s.runDue()
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.untilNextDue())
	}
}

// untilNextDue returns the sleep until the earliest scheduled run.
func (s *Scheduler) untilNextDue() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	for _, e := range s.jobs {
		if earliest.IsZero() || e.nextRun.Before(earliest) {
			earliest = e.nextRun
		}
	}
	if earliest.IsZero() {
		// Nothing registered yet; a poke wakes us up on Register.
		return time.Minute
	}

	d := time.Until(earliest)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// runDue launches every job whose next run has arrived.
func (s *Scheduler) runDue() {
	now := time.Now().In(s.timezone)

	s.mu.Lock()
	var due []*jobEntry
	for _, e := range s.jobs {
		if !e.nextRun.After(now) {
			e.lastRun = now
			e.nextRun = e.schedule.Next(now)
			e.runCount++
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *jobEntry) {
			defer s.wg.Done()
			s.execute(s.ctx, e, false)
		}(e)
	}
}

// execute runs one job and records the outcome.
func (s *Scheduler) execute(ctx context.Context, e *jobEntry, manual bool) JobResult {
	name := e.job.Name()
	startedAt := time.Now()

	s.logger.Info("job started", "job", name, "manual", manual)

	err := e.job.Run(ctx)
	completedAt := time.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Manual:      manual,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	if err != nil {
		e.failCount++
	}
	s.history = append(s.history, result)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}
	return result
}

// poke wakes the run loop to re-evaluate its sleep.
func (s *Scheduler) poke() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN SURFACE
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job synchronously, ignoring its schedule. The run
// is recorded in the history like a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	e, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return s.execute(ctx, e, true), nil
}

// ListJobs returns the registered jobs and their scheduling state.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
		})
	}
	return infos
}

// History returns the most recent executions, newest last.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}
