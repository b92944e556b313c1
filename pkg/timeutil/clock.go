// Package timeutil provides an injectable clock abstraction.
// The session runtime owns real timers in production and a fake clock in
// tests, so scheduler and debouncer behavior stays deterministic.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time sources used by the session runtime.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker

	// AfterFunc schedules fn to run after d and returns a cancellable handle.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Ticker is a cancellable periodic tick source.
type Ticker interface {
	// C returns the tick channel.
	C() <-chan time.Time

	// Stop stops the ticker.
	Stop()
}

// Timer is a cancellable one-shot timer handle.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// ══════════════════════════════════════════════════════════════════════════════
// REAL CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// RealClock delegates to the time package.
type RealClock struct{}

// NewRealClock returns the production clock.
func NewRealClock() RealClock {
	return RealClock{}
}

// Now implements Clock.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// NewTicker implements Clock.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Stop() bool { return rt.t.Stop() }

// ══════════════════════════════════════════════════════════════════════════════
// FAKE CLOCK (tests)
// ══════════════════════════════════════════════════════════════════════════════

// FakeClock is a manually advanced clock for deterministic tests.
// Advance fires due timers synchronously, in deadline order, on the
// caller's goroutine.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	clock    *FakeClock
	deadline time.Time
	period   time.Duration // 0 = one-shot
	fn       func()        // one-shot callback
	ch       chan time.Time
	stopped  bool
}

// NewFakeClock creates a fake clock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker implements Clock.
func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &fakeWaiter{
		clock:    c,
		deadline: c.now.Add(d),
		period:   d,
		ch:       make(chan time.Time, 1024),
	}
	c.waiters = append(c.waiters, w)
	return fakeTicker{w}
}

// AfterFunc implements Clock.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &fakeWaiter{
		clock:    c,
		deadline: c.now.Add(d),
		fn:       fn,
	}
	c.waiters = append(c.waiters, w)
	return w
}

// Advance moves the clock forward, firing every timer and ticker whose
// deadline falls within the window, in chronological order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}

		c.now = next.deadline
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
			select {
			case next.ch <- c.now:
			default:
			}
			continue
		}

		next.stopped = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// nextDueLocked returns the earliest live waiter due at or before target.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	c.waiters = live

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}
	return c.waiters[0]
}

// fakeTicker adapts a periodic waiter to the Ticker interface.
type fakeTicker struct {
	w *fakeWaiter
}

func (ft fakeTicker) C() <-chan time.Time { return ft.w.ch }
func (ft fakeTicker) Stop()               { ft.w.Stop() }

func (w *fakeWaiter) Stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()

	wasLive := !w.stopped
	w.stopped = true
	return wasLive
}
