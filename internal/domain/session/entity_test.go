package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewSessionParams {
	return NewSessionParams{
		ID:         "sess-1",
		Generation: "gen-1",
		OwnerID:    "student-1",
		Type:       TypeReading,
		Config: Config{
			PlannedDurationSec:       1500,
			BreakIntervalSec:         500,
			BreakDurationSec:         60,
			StudyGoalPages:           10,
			PresenceDetectionEnabled: true,
		},
		TotalPages: 20,
	}
}

func newRunning(t *testing.T, at time.Time) *StudySession {
	t.Helper()

	s, err := NewStudySession(validParams())
	require.NoError(t, err)
	require.NoError(t, s.Start(at))
	return s
}

func TestNewStudySession_Valid(t *testing.T) {
	s, err := NewStudySession(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, PauseNone, s.PauseReason)
	assert.Equal(t, 0, s.ElapsedSec)
	assert.True(t, s.IsFullscreen)
}

func TestNewStudySession_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NewSessionParams)
		wantErr error
	}{
		{
			name:    "zero planned duration",
			mutate:  func(p *NewSessionParams) { p.Config.PlannedDurationSec = 0 },
			wantErr: ErrInvalidPlannedDuration,
		},
		{
			name:    "negative planned duration",
			mutate:  func(p *NewSessionParams) { p.Config.PlannedDurationSec = -10 },
			wantErr: ErrInvalidPlannedDuration,
		},
		{
			name:    "negative break interval",
			mutate:  func(p *NewSessionParams) { p.Config.BreakIntervalSec = -1 },
			wantErr: ErrInvalidBreakConfig,
		},
		{
			name:    "negative break duration",
			mutate:  func(p *NewSessionParams) { p.Config.BreakDurationSec = -1 },
			wantErr: ErrInvalidBreakConfig,
		},
		{
			name: "break interval without break duration",
			mutate: func(p *NewSessionParams) {
				p.Config.BreakIntervalSec = 300
				p.Config.BreakDurationSec = 0
			},
			wantErr: ErrInvalidBreakConfig,
		},
		{
			name:    "negative study goal",
			mutate:  func(p *NewSessionParams) { p.Config.StudyGoalPages = -5 },
			wantErr: ErrInvalidStudyGoal,
		},
		{
			name:    "empty owner",
			mutate:  func(p *NewSessionParams) { p.OwnerID = "" },
			wantErr: ErrInvalidOwner,
		},
		{
			name:    "unknown session type",
			mutate:  func(p *NewSessionParams) { p.Type = "karaoke" },
			wantErr: ErrInvalidSessionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			s, err := NewStudySession(params)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStart_OnlyFromIdle(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	assert.ErrorIs(t, s.Start(now), ErrNotStartable)

	_, err := s.Apply(NewEvent(EventCancel, s.ID, s.Generation, now))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Start(now), ErrSessionFinalized)
}

func TestRecordProgress(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	require.NoError(t, s.RecordProgress(7, now))
	assert.Equal(t, 7, s.PagesRead)

	// Regression is allowed: completion uses the current value.
	require.NoError(t, s.RecordProgress(3, now))
	assert.Equal(t, 3, s.PagesRead)

	assert.Error(t, s.RecordProgress(-1, now))
}

func TestRecordProgress_FinalizedSessionRejects(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	_, err := s.Apply(NewEvent(EventCancel, s.ID, s.Generation, now))
	require.NoError(t, err)

	assert.ErrorIs(t, s.RecordProgress(5, now), ErrSessionFinalized)
}

func TestDisablePresenceDetection_Degrades(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	s.DisablePresenceDetection()

	_, err := s.Apply(NewPresenceEvent(s.ID, s.Generation, true, now))
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 0, s.Counters.PresencePauseCount)
}

func TestRemainingSec(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	assert.Equal(t, 1500, s.RemainingSec())

	s.ElapsedSec = 1400
	assert.Equal(t, 100, s.RemainingSec())

	s.ElapsedSec = 1600
	assert.Equal(t, 0, s.RemainingSec())
}

func TestClone_IsIndependent(t *testing.T) {
	now := time.Now().UTC()
	s := newRunning(t, now)

	clone := s.Clone()
	clone.ElapsedSec = 999

	assert.Equal(t, 0, s.ElapsedSec)
	assert.Equal(t, 999, clone.ElapsedSec)
}
