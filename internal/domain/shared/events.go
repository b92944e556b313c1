// Package shared contains common domain types and events used across all
// domain packages. Lifecycle events published here drive the gamification
// handlers (XP, streaks) without coupling them to the session runtime.
package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
const (
	// Session lifecycle events
	EventSessionStarted      EventType = "session.started"
	EventSessionCompleted    EventType = "session.completed"
	EventSessionCancelled    EventType = "session.cancelled"
	EventSessionBreakStarted EventType = "session.break_started"

	// Gamification events
	EventXPAwarded     EventType = "progress.xp_awarded"
	EventStreakUpdated EventType = "progress.streak_updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Lifecycle Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionStartedEvent is emitted when a focus session starts running.
type SessionStartedEvent struct {
	BaseEvent
	OwnerID            string `json:"owner_id"`
	SessionType        string `json:"session_type"`
	PlannedDurationSec int    `json:"planned_duration_sec"`
}

// Payload implements Event interface.
func (e SessionStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":             e.OwnerID,
		"session_type":         e.SessionType,
		"planned_duration_sec": e.PlannedDurationSec,
	}
}

// NewSessionStartedEvent creates a new SessionStartedEvent.
func NewSessionStartedEvent(sessionID, ownerID, sessionType string, plannedSec int) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent:          NewBaseEvent(EventSessionStarted, sessionID),
		OwnerID:            ownerID,
		SessionType:        sessionType,
		PlannedDurationSec: plannedSec,
	}
}

// SessionFinalizedEvent carries the frozen outcome of a finished session.
// Emitted as session.completed or session.cancelled.
type SessionFinalizedEvent struct {
	BaseEvent
	OwnerID               string  `json:"owner_id"`
	ElapsedSec            int     `json:"elapsed_sec"`
	EffectiveStudyTimeSec int     `json:"effective_study_time_sec"`
	FocusScore            int     `json:"focus_score"`
	ProductivityScore     float64 `json:"productivity_score"`
	CompletionPct         float64 `json:"completion_pct"`
	PagesRead             int     `json:"pages_read"`
}

// Payload implements Event interface.
func (e SessionFinalizedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":                 e.OwnerID,
		"elapsed_sec":              e.ElapsedSec,
		"effective_study_time_sec": e.EffectiveStudyTimeSec,
		"focus_score":              e.FocusScore,
		"productivity_score":       e.ProductivityScore,
		"completion_pct":           e.CompletionPct,
		"pages_read":               e.PagesRead,
	}
}

// NewSessionFinalizedEvent creates the terminal lifecycle event.
func NewSessionFinalizedEvent(eventType EventType, sessionID, ownerID string) SessionFinalizedEvent {
	return SessionFinalizedEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		OwnerID:   ownerID,
	}
}

// SessionBreakStartedEvent is emitted when a scheduled break begins.
type SessionBreakStartedEvent struct {
	BaseEvent
	OwnerID          string `json:"owner_id"`
	BreakDurationSec int    `json:"break_duration_sec"`
}

// Payload implements Event interface.
func (e SessionBreakStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":           e.OwnerID,
		"break_duration_sec": e.BreakDurationSec,
	}
}

// NewSessionBreakStartedEvent creates a new SessionBreakStartedEvent.
func NewSessionBreakStartedEvent(sessionID, ownerID string, breakSec int) SessionBreakStartedEvent {
	return SessionBreakStartedEvent{
		BaseEvent:        NewBaseEvent(EventSessionBreakStarted, sessionID),
		OwnerID:          ownerID,
		BreakDurationSec: breakSec,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when a learner earns XP for a finished session.
type XPAwardedEvent struct {
	BaseEvent
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":   e.OwnerID,
		"session_id": e.SessionID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(ownerID, sessionID string, amount, newTotal int) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, ownerID),
		OwnerID:   ownerID,
		SessionID: sessionID,
		Amount:    amount,
		NewTotal:  newTotal,
	}
}

// StreakUpdatedEvent is emitted when a learner's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	OwnerID       string `json:"owner_id"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":       e.OwnerID,
		"current_streak": e.CurrentStreak,
		"best_streak":    e.BestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(ownerID string, current, best int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, ownerID),
		OwnerID:       ownerID,
		CurrentStreak: current,
		BestStreak:    best,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
