// Package runtime implements the focus session runtime: the ordered event
// inbox, the tick/break scheduler, the presence debouncer, and the
// coordinator state machine driving the session aggregate.
//
// Concurrency model: all inputs (scheduler ticks, debouncer output, host
// visibility/fullscreen signals, user actions) are funneled into one ordered
// inbox per session, consumed sequentially by one coordinator goroutine.
// No two mutations of session state ever run concurrently.
package runtime

import (
	"errors"
	"sync"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ErrInboxClosed is returned when posting to a closed inbox.
var ErrInboxClosed = errors.New("session inbox is closed")

// ErrInboxFull is returned when the queue is at capacity. Post never
// blocks: a producer holding no lock cannot wedge Close.
var ErrInboxFull = errors.New("session inbox is full")

// defaultInboxCapacity bounds the per-session event queue. A full queue
// rejects the event rather than parking the producer.
const defaultInboxCapacity = 256

// Inbox is the single ordered event queue of one session. The consumer
// acknowledges each handled event via Done, which lets PostAwait callers
// observe state that already includes their event.
type Inbox struct {
	mu        sync.Mutex
	cond      *sync.Cond
	ch        chan session.Event
	closed    bool
	posted    uint64
	processed uint64
}

// NewInbox creates an inbox with the default capacity.
func NewInbox() *Inbox {
	in := &Inbox{ch: make(chan session.Event, defaultInboxCapacity)}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Post enqueues an event in arrival order without blocking.
func (in *Inbox) Post(ev session.Event) error {
	_, err := in.enqueue(ev)
	return err
}

// PostAwait enqueues an event and blocks until the consumer has handled
// it. Returns ErrInboxClosed if the inbox closes before the event is
// processed.
func (in *Inbox) PostAwait(ev session.Event) error {
	seq, err := in.enqueue(ev)
	if err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for in.processed < seq && !in.closed {
		in.cond.Wait()
	}
	if in.processed < seq {
		return ErrInboxClosed
	}
	return nil
}

func (in *Inbox) enqueue(ev session.Event) (uint64, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, ErrInboxClosed
	}

	select {
	case in.ch <- ev:
		in.posted++
		return in.posted, nil
	default:
		return 0, ErrInboxFull
	}
}

// Events returns the consumer side of the queue.
func (in *Inbox) Events() <-chan session.Event {
	return in.ch
}

// Done marks one event as handled. Called by the consumer after each
// event taken from Events, in consumption order.
func (in *Inbox) Done() {
	in.mu.Lock()
	in.processed++
	in.cond.Broadcast()
	in.mu.Unlock()
}

// Close shuts the inbox and wakes pending PostAwait callers. Pending
// events remain readable until drained.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}
	in.closed = true
	close(in.ch)
	in.cond.Broadcast()
}
