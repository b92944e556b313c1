package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

func newTestDebouncer(t *testing.T) (*PresenceDebouncer, *Inbox, *timeutil.FakeClock) {
	t.Helper()
	clock := timeutil.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	inbox := NewInbox()
	d := NewPresenceDebouncer(clock, inbox, testLogger(), "s-1", "g-1")
	return d, inbox, clock
}

func TestPresenceDebouncer_SustainedAbsenceEmitsOnce(t *testing.T) {
	d, inbox, clock := newTestDebouncer(t)

	// Classifier reports absence every second; only the third second of
	// uninterrupted absence produces a debounced event.
	d.OnReading(false)
	clock.Advance(time.Second)
	assert.Empty(t, drain(inbox))

	d.OnReading(false)
	clock.Advance(time.Second)
	assert.Empty(t, drain(inbox))

	d.OnReading(false)
	clock.Advance(time.Second)

	evs := drain(inbox)
	require.Len(t, evs, 1)
	assert.Equal(t, session.EventPresenceChanged, evs[0].Kind)
	assert.True(t, evs[0].Absent)

	// Further absence readings are idempotent.
	d.OnReading(false)
	clock.Advance(10 * time.Second)
	assert.Empty(t, drain(inbox))
}

func TestPresenceDebouncer_BriefAbsenceIsSwallowed(t *testing.T) {
	d, inbox, clock := newTestDebouncer(t)

	d.OnReading(false)
	clock.Advance(2 * time.Second)
	d.OnReading(true) // subject back within the grace window

	clock.Advance(10 * time.Second)
	assert.Empty(t, drain(inbox), "a blip shorter than the window must not surface")
}

func TestPresenceDebouncer_RepeatedAbsenceDoesNotRestartWindow(t *testing.T) {
	d, inbox, clock := newTestDebouncer(t)

	d.OnReading(false)
	clock.Advance(2 * time.Second)
	d.OnReading(false) // duplicate reading must not push the deadline out
	clock.Advance(time.Second)

	evs := drain(inbox)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Absent)
}

func TestPresenceDebouncer_ReturnEmitsPresenceRestored(t *testing.T) {
	d, inbox, clock := newTestDebouncer(t)

	d.OnReading(false)
	clock.Advance(PresenceGraceWindow)
	require.Len(t, drain(inbox), 1)

	d.OnReading(true)
	evs := drain(inbox)
	require.Len(t, evs, 1)
	assert.False(t, evs[0].Absent)

	// Repeated presence readings stay silent.
	d.OnReading(true)
	d.OnReading(true)
	assert.Empty(t, drain(inbox))
}

func TestPresenceDebouncer_StopSilencesEverything(t *testing.T) {
	d, inbox, clock := newTestDebouncer(t)

	d.OnReading(false)
	d.Stop()
	clock.Advance(10 * time.Second)
	d.OnReading(false)
	d.OnReading(true)

	assert.Empty(t, drain(inbox))
}
