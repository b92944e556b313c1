// Package messaging implements the event bus carrying session lifecycle
// and gamification events between the runtime and its subscribers.
// It provides an in-memory bus for single-instance deployments and a
// Redis Pub/Sub bus for distributed ones.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when publishing to a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrNilEvent is returned when publishing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus dispatches events to subscribed handlers inside one
// process. In async mode handlers run on a bounded worker pool so a slow
// subscriber (XP calculation, digest rendering) never blocks the session
// coordinator publishing the event.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *BusMetrics
	closed      bool
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on the worker pool instead of the caller.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handler executions in async mode.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		logger:     config.Logger.With("component", "event_bus"),
		metrics:    NewBusMetrics(),
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler invoked for every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish delivers the event to every matching handler.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0,
		len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.metrics.recordPublish(event.EventType())

	for _, handler := range handlers {
		if b.asyncMode {
			b.runAsync(event, handler)
		} else {
			b.run(event, handler)
		}
	}
	return nil
}

func (b *InMemoryEventBus) runAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.workerPool <- struct{}{}
		defer func() { <-b.workerPool }()
		b.run(event, handler)
	}()
}

// run executes one handler, recovering panics so a broken subscriber
// cannot take the bus down.
func (b *InMemoryEventBus) run(event shared.Event, handler shared.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.recordFailure(event.EventType())
			b.logger.Error("event handler panicked",
				"event_type", event.EventType(), "panic", fmt.Sprintf("%v", r))
		}
	}()

	start := time.Now()
	if err := handler(event); err != nil {
		b.metrics.recordFailure(event.EventType())
		b.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err)
		return
	}
	b.metrics.recordSuccess(event.EventType(), time.Since(start))
}

// Close waits for in-flight async handlers and rejects further publishes.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus metrics tracker.
func (b *InMemoryEventBus) Metrics() *BusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// BusMetrics tracks publish and handler outcomes per event type.
type BusMetrics struct {
	mu sync.RWMutex

	published     map[shared.EventType]int64
	successes     int64
	failures      int64
	totalDuration time.Duration
	since         time.Time
}

// NewBusMetrics creates a metrics tracker.
func NewBusMetrics() *BusMetrics {
	return &BusMetrics{
		published: make(map[shared.EventType]int64),
		since:     time.Now(),
	}
}

func (m *BusMetrics) recordPublish(t shared.EventType) {
	m.mu.Lock()
	m.published[t]++
	m.mu.Unlock()
}

func (m *BusMetrics) recordSuccess(t shared.EventType, d time.Duration) {
	m.mu.Lock()
	m.successes++
	m.totalDuration += d
	m.mu.Unlock()
}

func (m *BusMetrics) recordFailure(t shared.EventType) {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

// MetricsSnapshot is an immutable view of the bus metrics.
type MetricsSnapshot struct {
	Published    map[shared.EventType]int64 `json:"published"`
	Successes    int64                      `json:"successes"`
	Failures     int64                      `json:"failures"`
	AvgHandlerMs float64                    `json:"avg_handler_ms"`
	TrackedSec   int64                      `json:"tracked_sec"`
}

// Snapshot returns a copy of the current counters.
func (m *BusMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published := make(map[shared.EventType]int64, len(m.published))
	for t, n := range m.published {
		published[t] = n
	}

	var avgMs float64
	if m.successes > 0 {
		avgMs = float64(m.totalDuration.Milliseconds()) / float64(m.successes)
	}

	return MetricsSnapshot{
		Published:    published,
		Successes:    m.successes,
		Failures:     m.failures,
		AvgHandlerMs: avgMs,
		TrackedSec:   int64(time.Since(m.since).Seconds()),
	}
}
