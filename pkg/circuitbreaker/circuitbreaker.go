// Package circuitbreaker implements the Circuit Breaker pattern.
// It stops snapshot pushes from hammering a failing Sync Gateway while
// the in-memory session state stays authoritative.
// No external dependencies - uses only standard library.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed is the normal state - requests pass through.
	StateClosed State = iota
	// StateOpen blocks requests after repeated failures.
	StateOpen
	// StateHalfOpen lets a probe request test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the circuit blocks requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies this breaker in logs and state-change callbacks.
	Name string

	// FailureThreshold opens the circuit after this many consecutive
	// failures. Default: 5.
	FailureThreshold int

	// SuccessThreshold closes the circuit after this many consecutive
	// half-open successes. Default: 2.
	SuccessThreshold int

	// OpenTimeout is how long to stay open before probing. Default: 30s.
	OpenTimeout time.Duration

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is a thread-safe circuit breaker.
type Breaker struct {
	mu sync.Mutex

	config Config
	state  State

	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

// New creates a Breaker from the config, applying defaults for zero fields.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}

	return &Breaker{config: config, state: StateClosed}
}

// Execute runs the operation through the breaker.
func (b *Breaker) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := operation(ctx)
	b.afterCall(err)
	return err
}

// State returns the current state, accounting for open-timeout expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbeLocked()
	return b.state
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeProbeLocked()
	if b.state == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// maybeProbeLocked transitions open -> half-open once the timeout elapsed.
func (b *Breaker) maybeProbeLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.config.OpenTimeout {
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.consecutiveSuccesses = 0
		b.consecutiveFailures++

		if b.state == StateHalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
			b.openedAt = time.Now()
			b.transitionLocked(StateOpen)
		}
		return
	}

	b.consecutiveFailures = 0
	switch b.state {
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	case StateClosed:
		b.consecutiveSuccesses++
	}
}

func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}
