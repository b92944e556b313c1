package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 15, 30, 0, 0, time.UTC)
}

func newLearner(t *testing.T) *Learner {
	t.Helper()
	l, err := NewLearner("learner-1", "Aray", day(1))
	require.NoError(t, err)
	return l
}

func TestNewLearner_Validation(t *testing.T) {
	_, err := NewLearner("", "Aray", day(1))
	assert.Error(t, err)

	_, err = NewLearner("learner-1", "", day(1))
	assert.Error(t, err)
}

func TestCalculateLevel(t *testing.T) {
	assert.Equal(t, Level(0), CalculateLevel(0))
	assert.Equal(t, Level(0), CalculateLevel(499))
	assert.Equal(t, Level(1), CalculateLevel(500))
	assert.Equal(t, Level(3), CalculateLevel(1700))
	assert.Equal(t, Level(0), CalculateLevel(-10))
}

func TestAwardSession_BaseXPFromEffectiveMinutes(t *testing.T) {
	l := newLearner(t)

	award := l.AwardSession(SessionOutcome{
		EffectiveStudySec: 1800, // 30 minutes
		FocusScore:        50,
		CompletionPct:     40,
		FinishedAt:        day(1),
	})

	assert.Equal(t, XP(30), award)
	assert.Equal(t, XP(30), l.TotalXP)
	assert.Equal(t, 1, l.SessionsCompleted)
	assert.Equal(t, 1800, l.TotalStudySec)
}

func TestAwardSession_Bonuses(t *testing.T) {
	l := newLearner(t)

	award := l.AwardSession(SessionOutcome{
		EffectiveStudySec: 600, // 10 minutes
		FocusScore:        85,  // focus bonus
		CompletionPct:     100, // goal bonus
		FinishedAt:        day(1),
	})

	assert.Equal(t, XP(10+25+50), award)
}

func TestStreak_ConsecutiveDaysExtend(t *testing.T) {
	l := newLearner(t)

	outcome := func(d int) SessionOutcome {
		return SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(d)}
	}

	l.AwardSession(outcome(1))
	assert.Equal(t, 1, l.CurrentStreak)

	l.AwardSession(outcome(2))
	l.AwardSession(outcome(3))
	assert.Equal(t, 3, l.CurrentStreak)
	assert.Equal(t, 3, l.BestStreak)
}

func TestStreak_SameDayDoesNotExtend(t *testing.T) {
	l := newLearner(t)

	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(1)})
	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(1).Add(2 * time.Hour)})

	assert.Equal(t, 1, l.CurrentStreak)
	assert.Equal(t, 2, l.SessionsCompleted)
}

func TestStreak_GapResets(t *testing.T) {
	l := newLearner(t)

	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(1)})
	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(2)})
	require.Equal(t, 2, l.CurrentStreak)

	// Day 3 skipped entirely.
	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(4)})

	assert.Equal(t, 1, l.CurrentStreak)
	assert.Equal(t, 2, l.BestStreak, "best streak survives the reset")
}

func TestStreakAlive(t *testing.T) {
	l := newLearner(t)
	assert.False(t, l.StreakAlive(day(1)))

	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(1)})
	assert.True(t, l.StreakAlive(day(1)))
	assert.True(t, l.StreakAlive(day(2)), "yesterday's session keeps the streak alive")
	assert.False(t, l.StreakAlive(day(3)))
}

func TestXP_AddNeverNegative(t *testing.T) {
	x := XP(10)
	assert.Equal(t, XP(0), x.Add(-50))
	assert.Equal(t, XP(15), x.Add(5))
}

func TestLearner_Clone(t *testing.T) {
	l := newLearner(t)
	l.AwardSession(SessionOutcome{EffectiveStudySec: 600, FinishedAt: day(1)})

	c := l.Clone()
	c.TotalXP = 9999

	assert.Equal(t, XP(10), l.TotalXP)
}
