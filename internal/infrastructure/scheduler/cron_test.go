package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, expr string) *CronExpression {
	t.Helper()
	ce, err := ParseCronExpression(expr)
	require.NoError(t, err)
	return ce
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-2 * * * *",
		"a * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q must be rejected", expr)
	}
}

func TestCronExpression_NextDailyAt(t *testing.T) {
	ce := mustParse(t, "30 6 * * *")

	// Before today's slot: fires today.
	from := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC), ce.Next(from))

	// Exactly at the slot: fires tomorrow, Next is strictly after.
	at := time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC), ce.Next(at))
}

func TestCronExpression_NextEveryTenMinutes(t *testing.T) {
	ce := mustParse(t, "*/10 * * * *")

	from := time.Date(2025, 6, 1, 10, 3, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 10, 0, 0, time.UTC), ce.Next(from))

	from = time.Date(2025, 6, 1, 10, 55, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), ce.Next(from))
}

func TestCronExpression_NextWeekday(t *testing.T) {
	// Mondays at 09:00. June 1st 2025 is a Sunday.
	ce := mustParse(t, "0 9 * * 1")

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := ce.Next(from)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.Monday, got.Weekday())
}

func TestCronExpression_NextRangeAndList(t *testing.T) {
	ce := mustParse(t, "0 9-11 * * *")
	from := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), ce.Next(from))

	ce = mustParse(t, "15,45 * * * *")
	from = time.Date(2025, 6, 1, 9, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC), ce.Next(from))
}

func TestCronExpression_NextMonthRollover(t *testing.T) {
	ce := mustParse(t, "0 0 1 * *")

	from := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), ce.Next(from))

	// December rolls into the next year.
	from = time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ce.Next(from))
}

func TestCronExpression_String(t *testing.T) {
	assert.Equal(t, "0 21 * * *", mustParse(t, "0 21 * * *").String())
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(5*time.Minute), s.Next(now))
	assert.Equal(t, "@every 5m0s", s.String())
}
