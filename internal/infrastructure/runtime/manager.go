package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

var (
	// ErrActiveSessionExists means the owner already has a live session.
	ErrActiveSessionExists = errors.New("owner already has an active session")

	// ErrNoActiveSession means no live session matched the request.
	ErrNoActiveSession = errors.New("no active session")
)

// ManagerConfig wires the session manager.
type ManagerConfig struct {
	Clock     timeutil.Clock
	Logger    *slog.Logger
	Publisher shared.EventPublisher
	Sink      SnapshotSink
	Cache     session.LiveCache
	Repo      session.Repository

	// SnapshotIntervalSec is the per-session sync cadence.
	SnapshotIntervalSec int

	// DebugFailFast propagates to every coordinator.
	DebugFailFast bool
}

// liveSession bundles everything owned by one running session.
type liveSession struct {
	sess        *session.StudySession
	inbox       *Inbox
	coordinator *Coordinator
	debouncer   *PresenceDebouncer
	cancel      context.CancelFunc
}

// Manager owns all live sessions in the process. It creates the
// per-session machinery (inbox, scheduler, debouncer, coordinator),
// routes browser signals and user actions into the right inbox, and
// tears sessions down when they finalize.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	byID     map[string]*liveSession
	byOwner  map[string]string // owner ID -> session ID
	shutdown bool
}

// NewManager creates an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "session_manager"),
		byID:    make(map[string]*liveSession),
		byOwner: make(map[string]string),
	}
}

// StartSession creates and starts a new study session for the owner.
// One live session per owner: a second start is rejected until the
// first one finalizes.
func (m *Manager) StartSession(ctx context.Context, ownerID string, sessionType session.SessionType, cfg session.Config, totalPages int) (session.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return session.Snapshot{}, errors.New("manager is shutting down")
	}
	if _, busy := m.byOwner[ownerID]; busy {
		return session.Snapshot{}, ErrActiveSessionExists
	}

	sess, err := session.NewStudySession(session.NewSessionParams{
		ID:         uuid.New().String(),
		Generation: uuid.New().String(),
		OwnerID:    ownerID,
		Type:       sessionType,
		Config:     cfg,
		TotalPages: totalPages,
	})
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("create session: %w", err)
	}

	inbox := NewInbox()
	scheduler := NewTickScheduler(m.cfg.Clock, inbox, m.logger, sess.ID, sess.Generation)
	debouncer := NewPresenceDebouncer(m.cfg.Clock, inbox, m.logger, sess.ID, sess.Generation)

	coord, err := NewCoordinator(CoordinatorConfig{
		Session:             sess,
		Inbox:               inbox,
		Scheduler:           scheduler,
		Clock:               m.cfg.Clock,
		Logger:              m.cfg.Logger,
		Publisher:           m.cfg.Publisher,
		Sink:                m.cfg.Sink,
		Cache:               m.cfg.Cache,
		Repo:                m.cfg.Repo,
		SnapshotIntervalSec: m.cfg.SnapshotIntervalSec,
		DebugFailFast:       m.cfg.DebugFailFast,
		OnFinalized:         m.onSessionFinalized,
	})
	if err != nil {
		return session.Snapshot{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := coord.Start(runCtx); err != nil {
		cancel()
		return session.Snapshot{}, err
	}

	m.byID[sess.ID] = &liveSession{
		sess:        sess,
		inbox:       inbox,
		coordinator: coord,
		debouncer:   debouncer,
		cancel:      cancel,
	}
	m.byOwner[ownerID] = sess.ID

	return coord.Snapshot(), nil
}

// onSessionFinalized is called from the coordinator goroutine once the
// session reaches a terminal state.
func (m *Manager) onSessionFinalized(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(sessionID)
}

// removeLocked tears down one live session. Caller holds m.mu.
func (m *Manager) removeLocked(sessionID string) {
	live, ok := m.byID[sessionID]
	if !ok {
		return
	}
	live.debouncer.Stop()
	live.inbox.Close()
	live.cancel()
	delete(m.byID, sessionID)
	delete(m.byOwner, live.sess.OwnerID)
}

// ─── User actions ─────────────────────────────────────────────────────

// Pause requests a manual pause.
func (m *Manager) Pause(sessionID string) error {
	return m.post(sessionID, session.EventManualPause)
}

// Resume requests a resume from any paused or break state.
func (m *Manager) Resume(sessionID string) error {
	return m.post(sessionID, session.EventManualResume)
}

// Cancel abandons the session. The discarding of any in-flight timer
// events is handled by the generation guard, not by the caller.
func (m *Manager) Cancel(sessionID string) error {
	return m.post(sessionID, session.EventCancel)
}

// End completes the session before its planned duration.
func (m *Manager) End(sessionID string) error {
	return m.post(sessionID, session.EventSessionEnd)
}

// RecordProgress updates the pages-read mark. A progress update is a
// user action like any other: it goes through the ordered inbox so it
// never mutates the aggregate concurrently with the coordinator. The
// call returns only after the coordinator applied the event, so a
// subsequent Snapshot already reflects the new value.
func (m *Manager) RecordProgress(sessionID string, pagesRead int) error {
	if pagesRead < 0 {
		return errors.New("pages read cannot be negative")
	}
	live, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	err = live.inbox.PostAwait(session.NewRecordProgressEvent(
		sessionID, live.sess.Generation, pagesRead, m.cfg.Clock.Now(),
	))
	if errors.Is(err, ErrInboxClosed) {
		return ErrNoActiveSession
	}
	return err
}

// ─── Browser signals ──────────────────────────────────────────────────

// OnPresenceReading feeds one webcam classifier reading into the
// session's debouncer. Raw readings never reach the inbox directly.
func (m *Manager) OnPresenceReading(sessionID string, present bool) error {
	live, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	live.debouncer.OnReading(present)
	return nil
}

// OnVisibilityChange reports a browser tab visibility flip.
func (m *Manager) OnVisibilityChange(sessionID string, hidden bool) error {
	live, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return live.inbox.Post(session.NewVisibilityEvent(
		sessionID, live.sess.Generation, hidden, m.cfg.Clock.Now(),
	))
}

// OnFullscreenChange reports a fullscreen enter/exit.
func (m *Manager) OnFullscreenChange(sessionID string, fullscreen bool) error {
	live, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return live.inbox.Post(session.NewFullscreenEvent(
		sessionID, live.sess.Generation, fullscreen, m.cfg.Clock.Now(),
	))
}

// ReportClassifierFailure degrades the session to manual-pause-only
// mode after the webcam classifier stops producing readings.
func (m *Manager) ReportClassifierFailure(sessionID string) error {
	return m.post(sessionID, session.EventClassifierFailed)
}

// ─── Queries ──────────────────────────────────────────────────────────

// Snapshot returns the latest snapshot of a live session.
func (m *Manager) Snapshot(sessionID string) (session.Snapshot, error) {
	live, err := m.lookup(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return live.coordinator.Snapshot(), nil
}

// SnapshotByOwner returns the latest snapshot of the owner's live session.
func (m *Manager) SnapshotByOwner(ownerID string) (session.Snapshot, error) {
	m.mu.RLock()
	id, ok := m.byOwner[ownerID]
	m.mu.RUnlock()
	if !ok {
		return session.Snapshot{}, ErrNoActiveSession
	}
	return m.Snapshot(id)
}

// ActiveCount reports the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Shutdown cancels all live sessions and waits for their coordinators.
// Running sessions finalize as cancelled so their analytics freeze
// before the process exits.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	lives := make([]*liveSession, 0, len(m.byID))
	for _, live := range m.byID {
		lives = append(lives, live)
	}
	m.mu.Unlock()

	for _, live := range lives {
		_ = live.inbox.Post(session.NewEvent(
			session.EventCancel, live.sess.ID, live.sess.Generation, m.cfg.Clock.Now(),
		))
	}

	done := make(chan struct{})
	go func() {
		for _, live := range lives {
			live.coordinator.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		m.logger.Info("all sessions drained", "count", len(lives))
		return nil
	}
}

func (m *Manager) post(sessionID string, kind session.EventKind) error {
	live, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return live.inbox.Post(session.NewEvent(
		kind, sessionID, live.sess.Generation, m.cfg.Clock.Now(),
	))
}

func (m *Manager) lookup(sessionID string) (*liveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live, ok := m.byID[sessionID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return live, nil
}
