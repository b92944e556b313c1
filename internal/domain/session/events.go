package session

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// SESSION EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventKind определяет вид события сессии.
type EventKind string

const (
	// EventTick - один квант таймера (1 секунда).
	EventTick EventKind = "tick"
	// EventPresenceChanged - дебаунсированное изменение присутствия.
	EventPresenceChanged EventKind = "presence_changed"
	// EventVisibilityChanged - окно скрыто или снова видимо.
	EventVisibilityChanged EventKind = "visibility_changed"
	// EventFullscreenChanged - вход/выход из фуллскрина.
	EventFullscreenChanged EventKind = "fullscreen_changed"
	// EventManualPause - пользователь нажал паузу.
	EventManualPause EventKind = "manual_pause"
	// EventManualResume - пользователь подтвердил возобновление.
	EventManualResume EventKind = "manual_resume"
	// EventBreakDue - пришло время перерыва.
	EventBreakDue EventKind = "break_due"
	// EventBreakExpired - перерыв закончился.
	EventBreakExpired EventKind = "break_expired"
	// EventSessionEnd - запланированное время вышло.
	EventSessionEnd EventKind = "session_end"
	// EventCancel - явная отмена сессии.
	EventCancel EventKind = "cancel"
	// EventClassifierFailed - классификатор присутствия недоступен.
	// Сессия деградирует до presenceDetectionEnabled=false.
	EventClassifierFailed EventKind = "classifier_failed"
	// EventRecordProgress - пользователь сообщил прогресс чтения.
	EventRecordProgress EventKind = "record_progress"
)

// Event - событие сессии. Все входы (тики, дебаунсер, сигналы хоста,
// действия пользователя) сводятся в один упорядоченный inbox из таких
// событий. Каждое событие несёт идентичность и поколение сессии -
// guard против устаревших событий после финализации.
type Event struct {
	// Kind - вид события.
	Kind EventKind

	// SessionID - идентификатор сессии, к которой относится событие.
	SessionID string

	// Generation - поколение сессии на момент постановки события.
	Generation string

	// At - момент возникновения события.
	At time.Time

	// Absent - для PresenceChanged: пользователь отсутствует.
	Absent bool

	// Hidden - для VisibilityChanged: окно скрыто.
	Hidden bool

	// Fullscreen - для FullscreenChanged: клиент в фуллскрине.
	Fullscreen bool

	// Pages - для RecordProgress: абсолютное число прочитанных страниц.
	Pages int
}

// NewEvent создаёт событие указанного вида для сессии.
func NewEvent(kind EventKind, sessionID, generation string, at time.Time) Event {
	return Event{
		Kind:       kind,
		SessionID:  sessionID,
		Generation: generation,
		At:         at,
	}
}

// NewPresenceEvent создаёт дебаунсированное событие присутствия.
func NewPresenceEvent(sessionID, generation string, absent bool, at time.Time) Event {
	ev := NewEvent(EventPresenceChanged, sessionID, generation, at)
	ev.Absent = absent
	return ev
}

// NewVisibilityEvent создаёт событие видимости окна.
func NewVisibilityEvent(sessionID, generation string, hidden bool, at time.Time) Event {
	ev := NewEvent(EventVisibilityChanged, sessionID, generation, at)
	ev.Hidden = hidden
	return ev
}

// NewRecordProgressEvent создаёт событие обновления прогресса чтения.
// Прогресс проходит через общий inbox: так обновление не гонится с
// тиками и переходами состояния.
func NewRecordProgressEvent(sessionID, generation string, pages int, at time.Time) Event {
	ev := NewEvent(EventRecordProgress, sessionID, generation, at)
	ev.Pages = pages
	return ev
}

// NewFullscreenEvent создаёт событие смены фуллскрина.
func NewFullscreenEvent(sessionID, generation string, fullscreen bool, at time.Time) Event {
	ev := NewEvent(EventFullscreenChanged, sessionID, generation, at)
	ev.Fullscreen = fullscreen
	return ev
}
