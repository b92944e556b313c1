package eventhandler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/messaging"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memLearnerRepo struct {
	mu       sync.Mutex
	learners map[string]*progress.Learner
}

func newMemLearnerRepo() *memLearnerRepo {
	return &memLearnerRepo{learners: make(map[string]*progress.Learner)}
}

func (r *memLearnerRepo) Create(_ context.Context, l *progress.Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.learners[l.ID]; ok {
		return progress.ErrLearnerAlreadyExists
	}
	r.learners[l.ID] = l.Clone()
	return nil
}

func (r *memLearnerRepo) GetByID(_ context.Context, id string) (*progress.Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.learners[id]
	if !ok {
		return nil, progress.ErrLearnerNotFound
	}
	return l.Clone(), nil
}

func (r *memLearnerRepo) Update(_ context.Context, l *progress.Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.learners[l.ID]; !ok {
		return progress.ErrLearnerNotFound
	}
	r.learners[l.ID] = l.Clone()
	return nil
}

func (r *memLearnerRepo) TopByXP(context.Context, int) ([]*progress.Learner, error) {
	return nil, nil
}

func mustLearner(t *testing.T, id, name string) *progress.Learner {
	t.Helper()
	l, err := progress.NewLearner(id, name, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	return l
}

func completedEvent(ownerID string, effectiveSec, focus int, completionPct float64) shared.SessionFinalizedEvent {
	ev := shared.NewSessionFinalizedEvent(shared.EventSessionCompleted, "sess-1", ownerID)
	ev.EffectiveStudyTimeSec = effectiveSec
	ev.FocusScore = focus
	ev.CompletionPct = completionPct
	return ev
}

func TestOnSessionCompleted_AwardsXPAndPublishes(t *testing.T) {
	repo := newMemLearnerRepo()
	require.NoError(t, repo.Create(context.Background(), mustLearner(t, "owner-1", "Aisha")))

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: testLogger()})
	defer bus.Close()

	var mu sync.Mutex
	var published []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(ev shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, ev.EventType())
		return nil
	}))

	h := NewOnSessionCompletedHandler(repo, bus, testLogger())
	require.NoError(t, h.Register(bus))

	// 30 минут эффективной учёбы, высокий фокус, цель выполнена:
	// 30 + 25 + 50 = 105 XP.
	require.NoError(t, bus.Publish(completedEvent("owner-1", 1800, 90, 100)))

	learner, err := repo.GetByID(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, progress.XP(105), learner.TotalXP)
	assert.Equal(t, 1, learner.SessionsCompleted)
	assert.Equal(t, 1800, learner.TotalStudySec)
	assert.Equal(t, 1, learner.CurrentStreak)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, published, shared.EventXPAwarded)
	assert.Contains(t, published, shared.EventStreakUpdated)
}

func TestOnSessionCompleted_NoBonusesBelowThresholds(t *testing.T) {
	repo := newMemLearnerRepo()
	require.NoError(t, repo.Create(context.Background(), mustLearner(t, "owner-1", "Aisha")))

	h := NewOnSessionCompletedHandler(repo, nil, testLogger())
	require.NoError(t, h.Handle(completedEvent("owner-1", 600, 50, 40)))

	learner, err := repo.GetByID(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, progress.XP(10), learner.TotalXP)
}

func TestOnSessionCompleted_UnknownLearnerFails(t *testing.T) {
	h := NewOnSessionCompletedHandler(newMemLearnerRepo(), nil, testLogger())
	err := h.Handle(completedEvent("ghost", 600, 50, 40))
	assert.ErrorIs(t, err, progress.ErrLearnerNotFound)
}

func TestOnSessionCompleted_ParsesRawPayload(t *testing.T) {
	repo := newMemLearnerRepo()
	require.NoError(t, repo.Create(context.Background(), mustLearner(t, "owner-1", "Aisha")))

	h := NewOnSessionCompletedHandler(repo, nil, testLogger())

	// Доставка с другого инстанса: типизированная структура потеряна,
	// остаётся только payload с float64 после JSON.
	raw := rawEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCompleted, "sess-9"),
		payload: map[string]interface{}{
			"owner_id":                 "owner-1",
			"effective_study_time_sec": float64(1800),
			"focus_score":              float64(95),
			"completion_pct":           float64(100),
		},
	}
	require.NoError(t, h.Handle(raw))

	learner, err := repo.GetByID(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, progress.XP(105), learner.TotalXP)
}

func TestOnSessionCompleted_PayloadWithoutOwnerRejected(t *testing.T) {
	h := NewOnSessionCompletedHandler(newMemLearnerRepo(), nil, testLogger())
	raw := rawEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCompleted, "sess-9"),
		payload:   map[string]interface{}{},
	}
	assert.Error(t, h.Handle(raw))
}

type rawEvent struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func (e rawEvent) Payload() map[string]interface{} { return e.payload }
