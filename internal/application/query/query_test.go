package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ─── Fakes ───

type fakeLiveReader struct {
	snapshots map[string]session.Snapshot
}

func (f *fakeLiveReader) Snapshot(sessionID string) (session.Snapshot, error) {
	if snap, ok := f.snapshots[sessionID]; ok {
		return snap, nil
	}
	return session.Snapshot{}, session.ErrSessionNotFound
}

func (f *fakeLiveReader) SnapshotByOwner(ownerID string) (session.Snapshot, error) {
	for _, snap := range f.snapshots {
		if snap.OwnerID == ownerID {
			return snap, nil
		}
	}
	return session.Snapshot{}, session.ErrSessionNotFound
}

type fakeLiveCache struct {
	snapshots map[string]session.Snapshot
}

func (f *fakeLiveCache) PutSnapshot(_ context.Context, snap session.Snapshot) error {
	f.snapshots[snap.SessionID] = snap
	return nil
}

func (f *fakeLiveCache) GetSnapshot(_ context.Context, sessionID string) (*session.Snapshot, error) {
	snap, ok := f.snapshots[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return &snap, nil
}

func (f *fakeLiveCache) Remove(_ context.Context, sessionID string) error {
	delete(f.snapshots, sessionID)
	return nil
}

func (f *fakeLiveCache) ActiveSessionIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.snapshots))
	for id := range f.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeSessionRepo struct {
	sessions  map[string]*session.StudySession
	finalized []*session.StudySession
}

func (f *fakeSessionRepo) Save(_ context.Context, s *session.StudySession) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionRepo) FindByID(_ context.Context, id string) (*session.StudySession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionRepo) FindActiveByOwner(_ context.Context, ownerID string) ([]*session.StudySession, error) {
	var out []*session.StudySession
	for _, s := range f.sessions {
		if s.OwnerID == ownerID && !s.Status.IsTerminal() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListFinalized(_ context.Context, ownerID string, _ time.Time, _ int) ([]*session.StudySession, error) {
	var out []*session.StudySession
	for _, s := range f.finalized {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func liveSnap(id, owner string, elapsed int) session.Snapshot {
	return session.Snapshot{
		SessionID:   id,
		OwnerID:     owner,
		SessionType: session.TypeReading,
		Status:      session.StatusRunning,
		ElapsedSec:  elapsed,
	}
}

// ─── GetSession ───

func TestGetSession_PrefersLiveRuntime(t *testing.T) {
	live := &fakeLiveReader{snapshots: map[string]session.Snapshot{
		"sess-1": liveSnap("sess-1", "owner-1", 120),
	}}
	cache := &fakeLiveCache{snapshots: map[string]session.Snapshot{
		"sess-1": liveSnap("sess-1", "owner-1", 90), // stale copy
	}}
	h := NewGetSessionHandler(live, cache, nil)

	dto, err := h.Handle(context.Background(), GetSessionQuery{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, 120, dto.ElapsedSec)
}

func TestGetSession_FallsBackToCache(t *testing.T) {
	live := &fakeLiveReader{snapshots: map[string]session.Snapshot{}}
	cache := &fakeLiveCache{snapshots: map[string]session.Snapshot{
		"sess-2": liveSnap("sess-2", "owner-2", 45),
	}}
	h := NewGetSessionHandler(live, cache, nil)

	dto, err := h.Handle(context.Background(), GetSessionQuery{SessionID: "sess-2"})
	require.NoError(t, err)
	assert.Equal(t, "owner-2", dto.OwnerID)
	assert.Equal(t, 45, dto.ElapsedSec)
}

func TestGetSession_FallsBackToRepository(t *testing.T) {
	sess, err := session.NewStudySession(session.NewSessionParams{
		ID: "sess-3", Generation: "gen-3", OwnerID: "owner-3",
		Type:   session.TypeReading,
		Config: session.Config{PlannedDurationSec: 3000, StudyGoalPages: 20},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(time.Now()))
	repo := &fakeSessionRepo{sessions: map[string]*session.StudySession{"sess-3": sess}}
	h := NewGetSessionHandler(&fakeLiveReader{snapshots: map[string]session.Snapshot{}}, &fakeLiveCache{snapshots: map[string]session.Snapshot{}}, repo)

	dto, err := h.Handle(context.Background(), GetSessionQuery{SessionID: "sess-3"})
	require.NoError(t, err)
	assert.Equal(t, "owner-3", dto.OwnerID)
}

func TestGetSession_NotFoundAnywhere(t *testing.T) {
	h := NewGetSessionHandler(&fakeLiveReader{snapshots: map[string]session.Snapshot{}}, &fakeLiveCache{snapshots: map[string]session.Snapshot{}}, nil)
	_, err := h.Handle(context.Background(), GetSessionQuery{SessionID: "ghost"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetSession_ByOwner(t *testing.T) {
	live := &fakeLiveReader{snapshots: map[string]session.Snapshot{
		"sess-1": liveSnap("sess-1", "owner-1", 10),
	}}
	h := NewGetSessionHandler(live, nil, nil)

	dto, err := h.Handle(context.Background(), GetSessionQuery{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", dto.SessionID)
}

func TestGetSession_Validation(t *testing.T) {
	h := NewGetSessionHandler(nil, nil, nil)

	_, err := h.Handle(context.Background(), GetSessionQuery{})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), GetSessionQuery{SessionID: "a", OwnerID: "b"})
	assert.Error(t, err)
}

// ─── GetActiveSessions ───

func TestGetActiveSessions_SortedAndLimited(t *testing.T) {
	cache := &fakeLiveCache{snapshots: map[string]session.Snapshot{
		"s1": liveSnap("s1", "o1", 100),
		"s2": liveSnap("s2", "o2", 300),
		"s3": liveSnap("s3", "o3", 200),
	}}
	h := NewGetActiveSessionsHandler(cache)

	res, err := h.Handle(context.Background(), GetActiveSessionsQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, "s2", res.Sessions[0].SessionID)
	assert.Equal(t, "s3", res.Sessions[1].SessionID)
}

func TestGetActiveSessions_Empty(t *testing.T) {
	h := NewGetActiveSessionsHandler(&fakeLiveCache{snapshots: map[string]session.Snapshot{}})
	res, err := h.Handle(context.Background(), GetActiveSessionsQuery{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Sessions)
}

// ─── GetStudyStats ───

func finalizedSession(t *testing.T, id, owner string, elapsed, pages int, cancelled bool) *session.StudySession {
	t.Helper()
	sess, err := session.NewStudySession(session.NewSessionParams{
		ID: id, Generation: "gen-" + id, OwnerID: owner,
		Type:       session.TypeReading,
		Config:     session.Config{PlannedDurationSec: elapsed, StudyGoalPages: 20},
		TotalPages: 40,
	})
	require.NoError(t, err)
	start := time.Now().Add(-time.Duration(elapsed) * time.Second)
	require.NoError(t, sess.Start(start))
	sess.ElapsedSec = elapsed
	sess.PagesRead = pages
	kind := session.EventSessionEnd
	if cancelled {
		kind = session.EventCancel
	}
	_, err = sess.Apply(session.NewEvent(kind, sess.ID, sess.Generation, time.Now()))
	require.NoError(t, err)
	return sess
}

func TestGetStudyStats_Aggregates(t *testing.T) {
	repo := &fakeSessionRepo{
		sessions: map[string]*session.StudySession{},
		finalized: []*session.StudySession{
			finalizedSession(t, "s1", "owner-1", 1800, 15, false),
			finalizedSession(t, "s2", "owner-1", 1200, 5, false),
			finalizedSession(t, "s3", "owner-1", 600, 2, true),
			finalizedSession(t, "s4", "other", 900, 9, false),
		},
	}
	h := NewGetStudyStatsHandler(repo)

	stats, err := h.Handle(context.Background(), GetStudyStatsQuery{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SessionsCompleted)
	assert.Equal(t, 1, stats.SessionsCancelled)
	assert.Equal(t, 3600, stats.TotalStudySec)
	assert.Equal(t, 22, stats.PagesRead)
	// Без отвлечений фокус идеален; отменённая сессия в среднее не входит.
	assert.InDelta(t, 100.0, stats.AvgFocusScore, 0.01)
}

func TestGetStudyStats_RequiresOwner(t *testing.T) {
	h := NewGetStudyStatsHandler(&fakeSessionRepo{sessions: map[string]*session.StudySession{}})
	_, err := h.Handle(context.Background(), GetStudyStatsQuery{})
	assert.Error(t, err)
}

// ─── GetLeaderboard ───

type fakeLearnerRepo struct {
	top []*progress.Learner
}

func (f *fakeLearnerRepo) Create(context.Context, *progress.Learner) error { return nil }
func (f *fakeLearnerRepo) GetByID(context.Context, string) (*progress.Learner, error) {
	return nil, progress.ErrLearnerNotFound
}
func (f *fakeLearnerRepo) Update(context.Context, *progress.Learner) error { return nil }

func (f *fakeLearnerRepo) TopByXP(_ context.Context, limit int) ([]*progress.Learner, error) {
	if limit > len(f.top) {
		limit = len(f.top)
	}
	return f.top[:limit], nil
}

func TestGetLeaderboard_RanksFromStorageOrder(t *testing.T) {
	now := time.Now()
	first, err := progress.NewLearner("a", "Aisha", now)
	require.NoError(t, err)
	first.TotalXP = 1200
	first.CurrentStreak = 4
	second, err := progress.NewLearner("b", "Bekzat", now)
	require.NoError(t, err)
	second.TotalXP = 700

	h := NewGetLeaderboardHandler(&fakeLearnerRepo{top: []*progress.Learner{first, second}})

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "Aisha", res.Entries[0].DisplayName)
	assert.Equal(t, 1200, res.Entries[0].XP)
	assert.Equal(t, 2, res.Entries[0].Level)
	assert.Equal(t, 2, res.Entries[1].Rank)
}

func TestGetLeaderboard_RejectsNegativeLimit(t *testing.T) {
	h := NewGetLeaderboardHandler(&fakeLearnerRepo{})
	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: -1})
	assert.Error(t, err)
}
