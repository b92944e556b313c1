package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	moment := time.Date(2026, 3, 10, 2, 30, 0, 0, loc) // 2026-03-09 21:30 UTC

	got := StartOfDay(moment)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "1h23m45s", FormatSeconds(5025))
	assert.Equal(t, "0s", FormatSeconds(0))
}

func TestFakeClock_NowAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
}

func TestFakeClock_AfterFuncFiresInOrder(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	var fired []string
	clock.AfterFunc(3*time.Second, func() { fired = append(fired, "late") })
	clock.AfterFunc(1*time.Second, func() { fired = append(fired, "early") })

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"early"}, fired)

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
}

func TestFakeClock_StoppedTimerDoesNotFire(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())

	clock.Advance(5 * time.Second)
	assert.False(t, fired)
	assert.False(t, timer.Stop())
}

func TestFakeClock_TickerTicksEveryPeriod(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(3 * time.Second)

	ticks := 0
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 3, ticks)
}
