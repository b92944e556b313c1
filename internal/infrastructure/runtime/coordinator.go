package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

// SnapshotSink receives snapshots for asynchronous delivery to the Sync
// Gateway. Enqueue must never block: failures are retried outside the
// session hot path and never mutate in-memory state.
type SnapshotSink interface {
	Enqueue(snap session.Snapshot)
}

// CoordinatorConfig wires one coordinator.
type CoordinatorConfig struct {
	// Session is the aggregate owned by this coordinator.
	Session *session.StudySession

	// Inbox is the single ordered event queue.
	Inbox *Inbox

	// Scheduler owns tick emission and the break countdown.
	Scheduler *TickScheduler

	// Clock is the shared time source.
	Clock timeutil.Clock

	// Logger for structured logging.
	Logger *slog.Logger

	// Publisher receives lifecycle events (optional).
	Publisher shared.EventPublisher

	// Sink receives periodic and final snapshots (optional).
	Sink SnapshotSink

	// Cache holds live-session snapshots (optional).
	Cache session.LiveCache

	// Repo persists the session on finalization (optional).
	Repo session.Repository

	// SnapshotIntervalSec is the best-effort sync cadence. Default: 30.
	SnapshotIntervalSec int

	// DebugFailFast makes double finalization panic instead of being
	// silently discarded. Enabled in debug/test builds to surface
	// generation-guard bugs.
	DebugFailFast bool

	// OnFinalized is called once after the session reaches a terminal
	// state and its final snapshot is dispatched.
	OnFinalized func(sessionID string)
}

// Coordinator is the pause/resume state machine driver. It consumes the
// inbox strictly in arrival order on a single goroutine - the only place
// where the session aggregate is ever mutated.
type Coordinator struct {
	cfg    CoordinatorConfig
	sess   *session.StudySession
	logger *slog.Logger

	// lastSnap is the only state readable from other goroutines.
	snapMu   sync.RWMutex
	lastSnap session.Snapshot

	finalized bool
	wg        sync.WaitGroup
}

// NewCoordinator creates a coordinator for a session.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Session == nil {
		return nil, errors.New("coordinator requires a session")
	}
	if cfg.Inbox == nil || cfg.Scheduler == nil {
		return nil, errors.New("coordinator requires an inbox and a scheduler")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SnapshotIntervalSec <= 0 {
		cfg.SnapshotIntervalSec = 30
	}

	c := &Coordinator{
		cfg:    cfg,
		sess:   cfg.Session,
		logger: cfg.Logger.With("component", "coordinator", "session_id", cfg.Session.ID),
	}
	c.storeSnapshot(c.sess.TakeSnapshot(cfg.Clock.Now()))
	return c, nil
}

// Start begins the session: transitions Idle -> Running, arms the
// scheduler, and launches the consume loop.
func (c *Coordinator) Start(ctx context.Context) error {
	now := c.cfg.Clock.Now()
	if err := c.sess.Start(now); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	c.cfg.Scheduler.Start()
	c.cfg.Scheduler.Arm()

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.publish(shared.NewSessionStartedEvent(
		c.sess.ID, c.sess.OwnerID, string(c.sess.Type), c.sess.Config.PlannedDurationSec,
	))
	c.syncSnapshot(c.sess.TakeSnapshot(now), false)

	c.logger.Info("session started",
		"owner_id", c.sess.OwnerID,
		"type", c.sess.Type,
		"planned", timeutil.FormatSeconds(c.sess.Config.PlannedDurationSec),
	)
	return nil
}

// Wait blocks until the consume loop exits.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Snapshot returns the latest snapshot. Safe for concurrent use.
func (c *Coordinator) Snapshot() session.Snapshot {
	c.snapMu.RLock()
	snap := c.lastSnap
	c.snapMu.RUnlock()

	// The live countdown is owned by the scheduler; the aggregate field
	// only holds the seeded value. Overlay it so pollers see the
	// remaining break time decrement.
	if snap.Status == session.StatusOnBreak && !snap.Final {
		snap.BreakRemainingSec = c.cfg.Scheduler.BreakRemaining()
	}
	return snap
}

// consumeLoop drains the inbox until the session finalizes or the
// context is cancelled.
func (c *Coordinator) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.cfg.Scheduler.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping, context cancelled")
			return
		case ev, ok := <-c.cfg.Inbox.Events():
			if !ok {
				return
			}
			c.handleEvent(ev)
			c.cfg.Inbox.Done()
			if c.finalized {
				return
			}
		}
	}
}

// handleEvent processes exactly one event. Never called concurrently.
func (c *Coordinator) handleEvent(ev session.Event) {
	// Generation guard: once a session finalizes its generation is
	// retired, and stragglers (e.g. a debounce timer firing after a
	// manual cancel) are discarded by identity, not by touching state.
	if ev.SessionID != c.sess.ID || ev.Generation != c.sess.Generation {
		c.logger.Debug("discarding event for retired generation",
			"kind", ev.Kind, "event_generation", ev.Generation)
		return
	}

	eff, err := c.sess.Apply(ev)
	if err != nil {
		if errors.Is(err, session.ErrSessionFinalized) {
			if c.cfg.DebugFailFast {
				panic(fmt.Sprintf(
					"event %q delivered to finalized session %s: generation guard bug",
					ev.Kind, c.sess.ID,
				))
			}
			c.logger.Debug("discarding event for finalized session", "kind", ev.Kind)
			return
		}
		c.logger.Error("event application failed", "kind", ev.Kind, "error", err)
		return
	}

	c.applyEffect(eff, ev)

	// After a Tick lands while still Running, derive the scheduled
	// transitions. SessionEnd takes priority over BreakDue when both
	// conditions hold on the same tick.
	if ev.Kind == session.EventTick && c.sess.Status == session.StatusRunning {
		c.afterTick(ev)
	}

	snap := c.sess.TakeSnapshot(c.cfg.Clock.Now())
	c.storeSnapshot(snap)

	if c.finalized {
		return
	}
	if ev.Kind == session.EventTick && c.sess.ElapsedSec%c.cfg.SnapshotIntervalSec == 0 {
		c.syncSnapshot(snap, false)
	}
}

// afterTick evaluates the scheduled-transition conditions against the
// freshly incremented elapsed time.
func (c *Coordinator) afterTick(tick session.Event) {
	cfg := c.sess.Config

	switch {
	case c.sess.ElapsedSec >= cfg.PlannedDurationSec:
		c.synthesize(session.EventSessionEnd, tick.At)
	case cfg.BreakIntervalSec > 0 && c.sess.ElapsedSec%cfg.BreakIntervalSec == 0:
		c.synthesize(session.EventBreakDue, tick.At)
	}
}

// synthesize applies a derived event inline, preserving strict ordering:
// it runs on the same goroutine, between two inbox events.
func (c *Coordinator) synthesize(kind session.EventKind, at time.Time) {
	ev := session.NewEvent(kind, c.sess.ID, c.sess.Generation, at)

	eff, err := c.sess.Apply(ev)
	if err != nil {
		c.logger.Error("derived event application failed", "kind", kind, "error", err)
		return
	}
	c.applyEffect(eff, ev)
}

// applyEffect executes the timing side effects requested by a transition.
func (c *Coordinator) applyEffect(eff session.Effect, ev session.Event) {
	switch eff {
	case session.EffectArmScheduler:
		c.cfg.Scheduler.Arm()
		c.logger.Info("session resumed", "elapsed", c.sess.ElapsedSec)

	case session.EffectDisarmScheduler:
		c.cfg.Scheduler.Disarm()
		c.logger.Info("session paused",
			"reason", c.sess.PauseReason, "elapsed", c.sess.ElapsedSec)

	case session.EffectStartBreak:
		c.cfg.Scheduler.StartBreak(c.sess.Config.BreakDurationSec)
		c.publish(shared.NewSessionBreakStartedEvent(
			c.sess.ID, c.sess.OwnerID, c.sess.Config.BreakDurationSec,
		))
		c.logger.Info("break started",
			"duration", timeutil.FormatSeconds(c.sess.Config.BreakDurationSec))

	case session.EffectFinalize:
		c.onFinalize(ev)
	}
}

// onFinalize runs exactly once, on the transition into a terminal state.
func (c *Coordinator) onFinalize(ev session.Event) {
	c.finalized = true
	c.cfg.Scheduler.Disarm()

	snap := c.sess.TakeSnapshot(c.cfg.Clock.Now())
	c.storeSnapshot(snap)

	eventType := shared.EventSessionCompleted
	if c.sess.Status == session.StatusCancelled {
		eventType = shared.EventSessionCancelled
	}

	final := shared.NewSessionFinalizedEvent(eventType, c.sess.ID, c.sess.OwnerID)
	final.ElapsedSec = snap.ElapsedSec
	final.EffectiveStudyTimeSec = snap.Analytics.EffectiveStudyTimeSec
	final.FocusScore = snap.Analytics.FocusScore
	final.ProductivityScore = snap.Analytics.ProductivityScore
	final.CompletionPct = snap.Analytics.CompletionPct
	final.PagesRead = snap.PagesRead
	c.publish(final)

	c.syncSnapshot(snap, true)
	c.persistFinal()

	c.logger.Info("session finalized",
		"status", c.sess.Status,
		"elapsed", timeutil.FormatSeconds(snap.ElapsedSec),
		"effective", timeutil.FormatSeconds(snap.Analytics.EffectiveStudyTimeSec),
		"focus_score", snap.Analytics.FocusScore,
	)

	if c.cfg.OnFinalized != nil {
		c.cfg.OnFinalized(c.sess.ID)
	}
}

// syncSnapshot hands a snapshot to the sink and the live cache.
// Best effort on both paths: failures are logged, never propagated.
func (c *Coordinator) syncSnapshot(snap session.Snapshot, final bool) {
	if c.cfg.Sink != nil {
		c.cfg.Sink.Enqueue(snap)
	}

	if c.cfg.Cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if final {
		if err := c.cfg.Cache.Remove(ctx, snap.SessionID); err != nil {
			c.logger.Warn("failed to evict finalized session from cache", "error", err)
		}
		return
	}
	if err := c.cfg.Cache.PutSnapshot(ctx, snap); err != nil {
		c.logger.Warn("failed to cache live snapshot", "error", err)
	}
}

// persistFinal stores the finalized session.
func (c *Coordinator) persistFinal() {
	if c.cfg.Repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.cfg.Repo.Save(ctx, c.sess); err != nil {
		c.logger.Error("failed to persist finalized session", "error", err)
	}
}

func (c *Coordinator) storeSnapshot(snap session.Snapshot) {
	c.snapMu.Lock()
	c.lastSnap = snap
	c.snapMu.Unlock()
}

func (c *Coordinator) publish(ev shared.Event) {
	if c.cfg.Publisher == nil {
		return
	}
	if err := c.cfg.Publisher.Publish(ev); err != nil {
		c.logger.Warn("failed to publish lifecycle event", "type", ev.EventType(), "error", err)
	}
}
