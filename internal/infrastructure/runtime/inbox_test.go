package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

func TestInbox_PreservesArrivalOrder(t *testing.T) {
	in := NewInbox()
	now := time.Now()

	kinds := []session.EventKind{
		session.EventTick,
		session.EventManualPause,
		session.EventManualResume,
		session.EventTick,
	}
	for _, k := range kinds {
		require.NoError(t, in.Post(session.NewEvent(k, "s-1", "g-1", now)))
	}

	for _, want := range kinds {
		got := <-in.Events()
		assert.Equal(t, want, got.Kind)
	}
}

func TestInbox_PostAfterClose(t *testing.T) {
	in := NewInbox()
	in.Close()

	err := in.Post(session.NewEvent(session.EventTick, "s-1", "g-1", time.Now()))
	assert.ErrorIs(t, err, ErrInboxClosed)
}

func TestInbox_CloseIsIdempotent(t *testing.T) {
	in := NewInbox()
	in.Close()
	assert.NotPanics(t, func() { in.Close() })
}

func TestInbox_FullRejectsInsteadOfBlocking(t *testing.T) {
	in := NewInbox()
	now := time.Now()

	for i := 0; i < defaultInboxCapacity; i++ {
		require.NoError(t, in.Post(session.NewEvent(session.EventTick, "s-1", "g-1", now)))
	}

	err := in.Post(session.NewEvent(session.EventTick, "s-1", "g-1", now))
	assert.ErrorIs(t, err, ErrInboxFull)

	// With no consumer attached, Close must still return promptly.
	done := make(chan struct{})
	go func() {
		in.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a full inbox")
	}
}

func TestInbox_PostAwaitReturnsAfterProcessing(t *testing.T) {
	in := NewInbox()

	handled := make(chan session.EventKind, 1)
	go func() {
		ev := <-in.Events()
		handled <- ev.Kind
		in.Done()
	}()

	err := in.PostAwait(session.NewEvent(session.EventManualPause, "s-1", "g-1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, session.EventManualPause, <-handled)
}

func TestInbox_PostAwaitUnblocksOnClose(t *testing.T) {
	in := NewInbox()

	errCh := make(chan error, 1)
	go func() {
		errCh <- in.PostAwait(session.NewEvent(session.EventManualPause, "s-1", "g-1", time.Now()))
	}()

	// No consumer ever runs: closing the inbox must wake the waiter
	// with an error instead of leaving it parked forever.
	time.Sleep(20 * time.Millisecond)
	in.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrInboxClosed)
	case <-time.After(time.Second):
		t.Fatal("PostAwait did not unblock on Close")
	}
}

func TestInbox_PendingEventsDrainAfterClose(t *testing.T) {
	in := NewInbox()
	now := time.Now()

	require.NoError(t, in.Post(session.NewEvent(session.EventTick, "s-1", "g-1", now)))
	require.NoError(t, in.Post(session.NewEvent(session.EventCancel, "s-1", "g-1", now)))
	in.Close()

	ev, ok := <-in.Events()
	require.True(t, ok)
	assert.Equal(t, session.EventTick, ev.Kind)

	ev, ok = <-in.Events()
	require.True(t, ok)
	assert.Equal(t, session.EventCancel, ev.Kind)

	_, ok = <-in.Events()
	assert.False(t, ok, "channel must be closed after draining")
}
