package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

// TickQuantum is the fixed scheduler quantum: one tick per second.
const TickQuantum = time.Second

// schedulerMode tracks what the scheduler emits on each quantum.
type schedulerMode int

const (
	// modeDisarmed - quanta pass silently (session paused).
	modeDisarmed schedulerMode = iota
	// modeTicking - each quantum emits a Tick (session running).
	modeTicking
	// modeBreak - each quantum decrements the break countdown.
	modeBreak
)

// TickScheduler emits Tick events into the session inbox while armed and
// owns the break countdown while the session is on break. Pausing and
// resuming never reset accumulated ticks - the scheduler is stateless
// about elapsed time, which lives in the aggregate.
type TickScheduler struct {
	mu sync.Mutex

	clock      timeutil.Clock
	inbox      *Inbox
	logger     *slog.Logger
	sessionID  string
	generation string

	mode           schedulerMode
	breakRemaining int

	ticker timeutil.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewTickScheduler creates a scheduler bound to one session's inbox.
func NewTickScheduler(clock timeutil.Clock, inbox *Inbox, logger *slog.Logger, sessionID, generation string) *TickScheduler {
	return &TickScheduler{
		clock:      clock,
		inbox:      inbox,
		logger:     logger.With("component", "tick_scheduler", "session_id", sessionID),
		sessionID:  sessionID,
		generation: generation,
	}
}

// Start launches the quantum loop. The scheduler starts disarmed.
func (ts *TickScheduler) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.done != nil {
		return
	}

	ts.done = make(chan struct{})
	ts.ticker = ts.clock.NewTicker(TickQuantum)

	ts.wg.Add(1)
	go ts.runLoop()
}

// Stop halts the quantum loop. Idempotent.
func (ts *TickScheduler) Stop() {
	ts.mu.Lock()
	if ts.done == nil {
		ts.mu.Unlock()
		return
	}
	done := ts.done
	ts.done = nil
	ts.ticker.Stop()
	ts.mu.Unlock()

	close(done)
	ts.wg.Wait()
}

// Arm resumes Tick emission. Accumulated ticks are preserved.
func (ts *TickScheduler) Arm() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.mode = modeTicking
	ts.breakRemaining = 0
}

// Disarm suspends Tick emission without resetting anything.
func (ts *TickScheduler) Disarm() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.mode = modeDisarmed
	ts.breakRemaining = 0
}

// StartBreak switches to the break countdown, seeded from the session's
// break duration. The countdown is owned exclusively by the scheduler.
func (ts *TickScheduler) StartBreak(durationSec int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.mode = modeBreak
	ts.breakRemaining = durationSec
}

// BreakRemaining returns the current countdown value (0 outside breaks).
func (ts *TickScheduler) BreakRemaining() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.breakRemaining
}

func (ts *TickScheduler) runLoop() {
	defer ts.wg.Done()

	ts.mu.Lock()
	done := ts.done
	ticker := ts.ticker
	ts.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			ts.onQuantum()
		}
	}
}

// onQuantum handles one scheduler quantum.
func (ts *TickScheduler) onQuantum() {
	ts.mu.Lock()
	mode := ts.mode
	var breakExpired bool
	if mode == modeBreak {
		ts.breakRemaining--
		if ts.breakRemaining <= 0 {
			ts.breakRemaining = 0
			ts.mode = modeDisarmed
			breakExpired = true
		}
	}
	ts.mu.Unlock()

	switch {
	case mode == modeTicking:
		ts.post(session.NewEvent(session.EventTick, ts.sessionID, ts.generation, ts.clock.Now()))
	case breakExpired:
		ts.post(session.NewEvent(session.EventBreakExpired, ts.sessionID, ts.generation, ts.clock.Now()))
	}
}

func (ts *TickScheduler) post(ev session.Event) {
	if err := ts.inbox.Post(ev); err != nil {
		ts.logger.Debug("dropping scheduler event", "kind", ev.Kind, "reason", err)
	}
}
