package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

func newTestManager(t *testing.T) (*Manager, *timeutil.FakeClock) {
	t.Helper()
	clock := timeutil.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := NewManager(ManagerConfig{
		Clock:  clock,
		Logger: testLogger(),
	})
	return m, clock
}

// eventually polls a live-session predicate until it holds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestManager_StartAndTick(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, snap.Status)
	assert.Equal(t, 1, m.ActiveCount())

	clock.Advance(5 * time.Second)

	eventually(t, func() bool {
		s, err := m.Snapshot(snap.SessionID)
		return err == nil && s.ElapsedSec == 5
	}, "five seconds of ticks should land in the aggregate")
}

func TestManager_OneActiveSessionPerOwner(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	_, err = m.StartSession(ctx, "owner-1", session.TypeVideo, defaultConfig(), 0)
	assert.ErrorIs(t, err, ErrActiveSessionExists)

	// A different owner is unaffected.
	_, err = m.StartSession(ctx, "owner-2", session.TypeVideo, defaultConfig(), 0)
	assert.NoError(t, err)
}

func TestManager_CancelFreesTheOwner(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(snap.SessionID))

	eventually(t, func() bool { return m.ActiveCount() == 0 },
		"cancelled session should be torn down")

	_, err = m.Snapshot(snap.SessionID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = m.StartSession(ctx, "owner-1", session.TypeQuizPrep, defaultConfig(), 0)
	assert.NoError(t, err, "owner can start a fresh session after cancelling")
}

func TestManager_PresencePauseAndResume(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	require.NoError(t, m.OnPresenceReading(snap.SessionID, false))
	clock.Advance(PresenceGraceWindow)

	eventually(t, func() bool {
		s, err := m.Snapshot(snap.SessionID)
		return err == nil && s.Status == session.StatusPausedPresence
	}, "sustained absence should pause the session")

	require.NoError(t, m.Resume(snap.SessionID))

	eventually(t, func() bool {
		s, err := m.Snapshot(snap.SessionID)
		return err == nil && s.Status == session.StatusRunning
	}, "resume should bring the session back")
}

func TestManager_RecordProgressVisibleInNextSnapshot(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	// RecordProgress waits for the coordinator to apply the update, so
	// the very next snapshot must already carry it.
	require.NoError(t, m.RecordProgress(snap.SessionID, 12))

	s, err := m.Snapshot(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 12, s.PagesRead)
}

func TestManager_RecordProgressRejectsNegative(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	assert.Error(t, m.RecordProgress(snap.SessionID, -1))
}

func TestManager_RecordProgressConcurrentWithTicks(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 200)
	require.NoError(t, err)

	// Progress updates from one goroutine interleave with timer ticks
	// from another. Every mutation goes through the ordered inbox, so
	// this holds under the race detector and nothing is lost.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for pages := 1; pages <= 50; pages++ {
			assert.NoError(t, m.RecordProgress(snap.SessionID, pages))
		}
	}()
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second)
	}
	<-done

	s, err := m.Snapshot(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 50, s.PagesRead)
	eventually(t, func() bool {
		s, err := m.Snapshot(snap.SessionID)
		return err == nil && s.ElapsedSec == 50
	}, "all ticks should land alongside the progress updates")
}

func TestManager_VisibilityPause(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	require.NoError(t, m.OnVisibilityChange(snap.SessionID, true))

	eventually(t, func() bool {
		s, err := m.Snapshot(snap.SessionID)
		return err == nil && s.Status == session.StatusPausedVisibility
	}, "hiding the tab should pause the session")
}

func TestManager_SnapshotByOwner(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)

	got, err := m.SnapshotByOwner("owner-1")
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, got.SessionID)

	_, err = m.SnapshotByOwner("owner-2")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_ShutdownCancelsAllSessions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.StartSession(ctx, "owner-1", session.TypeReading, defaultConfig(), 40)
	require.NoError(t, err)
	_, err = m.StartSession(ctx, "owner-2", session.TypeVideo, defaultConfig(), 0)
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))

	assert.Equal(t, 0, m.ActiveCount())

	_, err = m.StartSession(ctx, "owner-3", session.TypeReading, defaultConfig(), 0)
	assert.Error(t, err, "no new sessions after shutdown")
}
