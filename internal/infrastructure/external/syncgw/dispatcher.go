package syncgw

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// defaultQueueCapacity bounds the snapshot backlog. When the collector is
// down long enough to fill it, the oldest snapshot of the same session is
// superseded by the newest - final snapshots are never dropped.
const defaultQueueCapacity = 512

// pushTimeout bounds one delivery attempt including its retries.
const pushTimeout = 30 * time.Second

// Dispatcher decouples snapshot producers from delivery: Enqueue never
// blocks the coordinator goroutine; a single worker drains the queue and
// pushes through the gateway client.
type Dispatcher struct {
	gateway session.SyncGateway
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []session.Snapshot
	notify  chan struct{}
	stopped bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before enqueueing.
func NewDispatcher(gateway session.SyncGateway, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gateway: gateway,
		logger:  logger.With("component", "sync_dispatcher"),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the drain worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Enqueue implements the snapshot sink. Non-final snapshots replace any
// queued snapshot of the same session; final snapshots always append.
func (d *Dispatcher) Enqueue(snap session.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !snap.Final {
		for i := range d.queue {
			if d.queue[i].SessionID == snap.SessionID && !d.queue[i].Final {
				d.queue[i] = snap
				d.signalLocked()
				return
			}
		}
	}

	if len(d.queue) >= defaultQueueCapacity {
		// Shed the oldest non-final snapshot.
		for i := range d.queue {
			if !d.queue[i].Final {
				d.queue = append(d.queue[:i], d.queue[i+1:]...)
				break
			}
		}
	}

	d.queue = append(d.queue, snap)
	d.signalLocked()
}

// signalLocked wakes the drain worker. Caller holds d.mu.
func (d *Dispatcher) signalLocked() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Stop drains what it can and halts the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

// QueueLen reports the current backlog size.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) drainLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			d.flush()
			return
		case <-d.notify:
			d.flush()
		}
	}
}

// flush pushes queued snapshots one by one, oldest first.
func (d *Dispatcher) flush() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		snap := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := d.gateway.Push(ctx, snap)
		cancel()

		if err != nil {
			d.logger.Warn("snapshot delivery failed",
				"session_id", snap.SessionID,
				"final", snap.Final,
				"error", err)
			// Final snapshots go back to the front for another pass.
			if snap.Final {
				d.mu.Lock()
				d.queue = append([]session.Snapshot{snap}, d.queue...)
				stopped := d.stopped
				d.mu.Unlock()
				if stopped {
					return
				}
				// Give the collector a moment before the next pass.
				select {
				case <-d.done:
					return
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}
