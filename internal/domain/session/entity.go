// Package session содержит доменную модель учебной фокус-сессии.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package session

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// SessionType определяет тип учебной сессии.
type SessionType string

const (
	// TypeReading - чтение учебного материала.
	TypeReading SessionType = "reading"
	// TypeVideo - просмотр видеоматериала.
	TypeVideo SessionType = "video"
	// TypeQuizPrep - подготовка к квизу.
	TypeQuizPrep SessionType = "quiz_prep"
	// TypeFreeForm - свободная сессия без привязки к материалу.
	TypeFreeForm SessionType = "free_form"
)

// IsValid проверяет, что тип сессии корректен.
func (t SessionType) IsValid() bool {
	switch t {
	case TypeReading, TypeVideo, TypeQuizPrep, TypeFreeForm:
		return true
	default:
		return false
	}
}

// Status определяет текущее состояние сессии.
type Status string

const (
	// StatusIdle - сессия создана, но не запущена.
	StatusIdle Status = "idle"
	// StatusRunning - сессия идёт, время накапливается.
	StatusRunning Status = "running"
	// StatusPausedManual - пауза по явному действию пользователя.
	StatusPausedManual Status = "paused_manual"
	// StatusPausedPresence - пауза из-за отсутствия пользователя перед экраном.
	StatusPausedPresence Status = "paused_presence"
	// StatusPausedVisibility - пауза из-за потери видимости окна/фуллскрина.
	StatusPausedVisibility Status = "paused_visibility"
	// StatusOnBreak - запланированный перерыв.
	StatusOnBreak Status = "on_break"
	// StatusCompleted - сессия завершена (терминальное состояние).
	StatusCompleted Status = "completed"
	// StatusCancelled - сессия отменена (терминальное состояние).
	StatusCancelled Status = "cancelled"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPausedManual, StatusPausedPresence,
		StatusPausedVisibility, StatusOnBreak, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для Completed и Cancelled.
// Из терминального состояния сессия не может быть изменена.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsPaused возвращает true для любого состояния паузы (включая перерыв).
func (s Status) IsPaused() bool {
	switch s {
	case StatusPausedManual, StatusPausedPresence, StatusPausedVisibility, StatusOnBreak:
		return true
	default:
		return false
	}
}

// PauseReason определяет причину паузы. Хранится как явный tagged-вариант
// внутри состояния сессии, а не как набор разрозненных флагов.
type PauseReason string

const (
	// PauseNone - сессия не на паузе.
	PauseNone PauseReason = ""
	// PauseManual - пользователь нажал паузу.
	PauseManual PauseReason = "manual"
	// PausePresence - классификатор присутствия сообщил об отсутствии.
	PausePresence PauseReason = "presence"
	// PauseVisibility - окно скрыто или потерян фуллскрин.
	PauseVisibility PauseReason = "visibility"
	// PauseBreak - запланированный перерыв.
	PauseBreak PauseReason = "break"
)

// reasonForStatus возвращает причину паузы, соответствующую статусу.
func reasonForStatus(s Status) PauseReason {
	switch s {
	case StatusPausedManual:
		return PauseManual
	case StatusPausedPresence:
		return PausePresence
	case StatusPausedVisibility:
		return PauseVisibility
	case StatusOnBreak:
		return PauseBreak
	default:
		return PauseNone
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config содержит неизменяемую конфигурацию сессии.
// Задаётся один раз при создании; во время работы не читается ничего другого.
type Config struct {
	// PlannedDurationSec - запланированная длительность сессии в секундах.
	PlannedDurationSec int

	// BreakIntervalSec - интервал между перерывами (0 = без перерывов).
	BreakIntervalSec int

	// BreakDurationSec - длительность одного перерыва.
	BreakDurationSec int

	// StudyGoalPages - цель по количеству страниц.
	StudyGoalPages int

	// PresenceDetectionEnabled - включено ли отслеживание присутствия.
	PresenceDetectionEnabled bool
}

// Validate проверяет конфигурацию. Невалидная конфигурация отклоняется
// при создании - такая сессия никогда не достигает Running.
func (c Config) Validate() error {
	if c.PlannedDurationSec <= 0 {
		return ErrInvalidPlannedDuration
	}
	if c.BreakIntervalSec < 0 || c.BreakDurationSec < 0 {
		return ErrInvalidBreakConfig
	}
	if c.BreakIntervalSec > 0 && c.BreakDurationSec == 0 {
		return ErrInvalidBreakConfig
	}
	if c.StudyGoalPages < 0 {
		return ErrInvalidStudyGoal
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidPlannedDuration - запланированная длительность должна быть положительной.
	ErrInvalidPlannedDuration = errors.New("invalid planned duration: must be positive")

	// ErrInvalidBreakConfig - невалидные настройки перерывов.
	ErrInvalidBreakConfig = errors.New("invalid break config: negative interval/duration or zero break length")

	// ErrInvalidStudyGoal - цель по страницам не может быть отрицательной.
	ErrInvalidStudyGoal = errors.New("invalid study goal: must be non-negative")

	// ErrInvalidSessionType - неизвестный тип сессии.
	ErrInvalidSessionType = errors.New("invalid session type")

	// ErrInvalidOwner - не указан владелец сессии.
	ErrInvalidOwner = errors.New("invalid owner: must not be empty")

	// ErrSessionFinalized - событие доставлено в терминальную сессию.
	ErrSessionFinalized = errors.New("session is finalized: no further mutation allowed")

	// ErrNotStartable - сессия может быть запущена только из Idle.
	ErrNotStartable = errors.New("session can only be started from idle")

	// ErrSessionNotFound - сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDY SESSION
// ══════════════════════════════════════════════════════════════════════════════

// StudySession - агрегат учебной сессии. Единственный владелец мутаций -
// координатор, обрабатывающий события строго по одному.
type StudySession struct {
	// ID - уникальный идентификатор сессии (UUID в строковом формате).
	ID string

	// Generation - идентификатор поколения. Меняется при финализации;
	// события устаревшего поколения отбрасываются.
	Generation string

	// OwnerID - идентификатор учащегося.
	OwnerID string

	// Type - тип сессии.
	Type SessionType

	// Config - неизменяемая конфигурация.
	Config Config

	// Status - текущее состояние.
	Status Status

	// PauseReason - причина паузы. Установлена тогда и только тогда,
	// когда статус - одно из Paused*/OnBreak состояний.
	PauseReason PauseReason

	// ElapsedSec - накопленное учебное время. Строго не убывает в Running,
	// неизменно в любом другом статусе.
	ElapsedSec int

	// BreakRemainingSec - остаток перерыва. Валидно только в OnBreak.
	BreakRemainingSec int

	// PagesRead - прочитано страниц. Может уменьшаться при навигации назад.
	PagesRead int

	// TotalPages - всего страниц в материале (0 = неизвестно).
	TotalPages int

	// Counters - счётчики отвлечений.
	Counters DistractionCounters

	// Analytics - производные метрики. Пересчитываются, никогда не
	// редактируются вручную; замораживаются при финализации.
	Analytics Analytics

	// PresenceRestored - присутствие вернулось во время PausedPresence.
	// Разрешает показ подтверждения возобновления, но не авто-резюм.
	PresenceRestored bool

	// IsFullscreen - находится ли клиент в фокус/фуллскрин режиме.
	IsFullscreen bool

	// presenceEntry - момент входа в PausedPresence (для awaySec).
	presenceEntry time.Time

	// StartedAt - момент запуска.
	StartedAt time.Time

	// FinalizedAt - момент финализации (Completed/Cancelled).
	FinalizedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// DistractionCounters содержит счётчики отвлечений. Накапливаются независимо
// от run/pause статуса - аккумулятор слушает сигналы хоста напрямую.
type DistractionCounters struct {
	// TabSwitches - переключения вкладки (каждый hidden-переход).
	TabSwitches int

	// FullscreenExits - выходы из фуллскрина.
	FullscreenExits int

	// PresencePauseCount - входы в PausedPresence.
	PresencePauseCount int

	// AwaySec - суммарное время отсутствия (от входа в PausedPresence
	// до явного возобновления).
	AwaySec int
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewSessionParams содержит параметры для создания новой сессии.
type NewSessionParams struct {
	ID         string
	Generation string
	OwnerID    string
	Type       SessionType
	Config     Config
	TotalPages int
}

// NewStudySession создаёт новую сессию с валидацией всех полей.
func NewStudySession(params NewSessionParams) (*StudySession, error) {
	if params.ID == "" {
		return nil, errors.New("session id is required")
	}
	if params.Generation == "" {
		return nil, errors.New("session generation is required")
	}
	if params.OwnerID == "" {
		return nil, ErrInvalidOwner
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidSessionType
	}
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	if params.TotalPages < 0 {
		return nil, errors.New("total pages must be non-negative")
	}

	now := time.Now().UTC()

	return &StudySession{
		ID:           params.ID,
		Generation:   params.Generation,
		OwnerID:      params.OwnerID,
		Type:         params.Type,
		Config:       params.Config,
		Status:       StatusIdle,
		PauseReason:  PauseNone,
		TotalPages:   params.TotalPages,
		IsFullscreen: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Start запускает сессию. Единственный валидный переход из Idle.
func (s *StudySession) Start(at time.Time) error {
	if s.Status.IsTerminal() {
		return ErrSessionFinalized
	}
	if s.Status != StatusIdle {
		return ErrNotStartable
	}

	s.Status = StatusRunning
	s.PauseReason = PauseNone
	s.StartedAt = at
	s.UpdatedAt = at
	return nil
}

// RecordProgress обновляет прочитанные страницы. Регресс допустим -
// completionPct считается от текущего значения, не от максимума.
func (s *StudySession) RecordProgress(pagesRead int, at time.Time) error {
	if s.Status.IsTerminal() {
		return ErrSessionFinalized
	}
	if pagesRead < 0 {
		return errors.New("pages read must be non-negative")
	}

	s.PagesRead = pagesRead
	s.UpdatedAt = at
	return nil
}

// DisablePresenceDetection деградирует сессию до работы без классификатора.
// Вызывается при сбое/недоступности классификатора присутствия.
func (s *StudySession) DisablePresenceDetection() {
	s.Config.PresenceDetectionEnabled = false
}

// RemainingSec возвращает оставшееся запланированное время.
func (s *StudySession) RemainingSec() int {
	remaining := s.Config.PlannedDurationSec - s.ElapsedSec
	if remaining < 0 {
		return 0
	}
	return remaining
}

// setPaused переводит сессию в состояние паузы с указанной причиной.
func (s *StudySession) setPaused(status Status, at time.Time) {
	s.Status = status
	s.PauseReason = reasonForStatus(status)
	s.UpdatedAt = at
}

// resume возвращает сессию в Running и закрывает away-интервал, если
// возобновление происходит из PausedPresence.
func (s *StudySession) resume(at time.Time) {
	s.closeAwayInterval(at)
	s.Status = StatusRunning
	s.PauseReason = PauseNone
	s.PresenceRestored = false
	s.BreakRemainingSec = 0
	s.UpdatedAt = at
}

// closeAwayInterval добавляет длительность текущего отсутствия в AwaySec.
func (s *StudySession) closeAwayInterval(at time.Time) {
	if s.Status != StatusPausedPresence || s.presenceEntry.IsZero() {
		return
	}

	away := int(at.Sub(s.presenceEntry).Seconds())
	if away > 0 {
		s.Counters.AwaySec += away
	}
	// Инвариант: 0 <= AwaySec <= ElapsedSec.
	if s.Counters.AwaySec > s.ElapsedSec {
		s.Counters.AwaySec = s.ElapsedSec
	}
	s.presenceEntry = time.Time{}
}

// finalize переводит сессию в терминальное состояние и замораживает аналитику.
// Аналитика вычисляется ровно один раз.
func (s *StudySession) finalize(status Status, at time.Time) {
	s.closeAwayInterval(at)
	s.Status = status
	s.PauseReason = PauseNone
	s.BreakRemainingSec = 0
	s.PresenceRestored = false
	s.FinalizedAt = at
	s.UpdatedAt = at
	s.Analytics = ComputeAnalytics(s)
}

// String возвращает строковое представление сессии для логирования.
func (s *StudySession) String() string {
	return fmt.Sprintf(
		"StudySession{ID: %s, Owner: %s, Status: %s, Elapsed: %ds, Pages: %d/%d}",
		s.ID, s.OwnerID, s.Status, s.ElapsedSec, s.PagesRead, s.TotalPages,
	)
}

// Clone создаёт глубокую копию сессии.
func (s *StudySession) Clone() *StudySession {
	if s == nil {
		return nil
	}

	clone := *s
	return &clone
}
