package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

// PresenceGraceWindow is the fixed window a raw absence reading must
// survive uninterrupted before it is trusted.
const PresenceGraceWindow = 3 * time.Second

// PresenceDebouncer filters the raw presence classifier output into stable
// absence/presence events. The pending-absence timer is owned exclusively
// by the debouncer: only it starts and cancels the timer.
//
// Idempotency: repeated identical raw readings never re-emit the same
// debounced event.
type PresenceDebouncer struct {
	mu sync.Mutex

	clock      timeutil.Clock
	inbox      *Inbox
	logger     *slog.Logger
	sessionID  string
	generation string
	grace      time.Duration

	// absent is the debounced state. Sessions start with the subject present.
	absent  bool
	pending timeutil.Timer
	stopped bool
}

// NewPresenceDebouncer creates a debouncer bound to one session's inbox.
func NewPresenceDebouncer(clock timeutil.Clock, inbox *Inbox, logger *slog.Logger, sessionID, generation string) *PresenceDebouncer {
	return &PresenceDebouncer{
		clock:      clock,
		inbox:      inbox,
		logger:     logger.With("component", "presence_debouncer", "session_id", sessionID),
		sessionID:  sessionID,
		generation: generation,
		grace:      PresenceGraceWindow,
	}
}

// OnReading consumes one raw classifier reading. Called at the
// classifier's own cadence, decoupled from the tick clock.
func (d *PresenceDebouncer) OnReading(present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if present {
		// Any positive reading cancels a pending absence immediately.
		d.cancelPendingLocked()

		if d.absent {
			d.absent = false
			d.emitLocked(false)
		}
		return
	}

	// Already debounced-absent, or already counting down: nothing to do.
	if d.absent || d.pending != nil {
		return
	}

	d.pending = d.clock.AfterFunc(d.grace, d.graceExpired)
}

// graceExpired fires when an absence reading survived the full window.
func (d *PresenceDebouncer) graceExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = nil
	if d.stopped || d.absent {
		return
	}

	d.absent = true
	d.emitLocked(true)
}

// Stop cancels the pending timer and silences further readings.
func (d *PresenceDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.cancelPendingLocked()
}

func (d *PresenceDebouncer) cancelPendingLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

func (d *PresenceDebouncer) emitLocked(absent bool) {
	ev := session.NewPresenceEvent(d.sessionID, d.generation, absent, d.clock.Now())
	if err := d.inbox.Post(ev); err != nil {
		d.logger.Debug("dropping presence event", "absent", absent, "reason", err)
	}
}
