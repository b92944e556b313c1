// Package progress содержит доменную модель прогресса учащегося:
// XP, уровни и серии активных дней, начисляемые по итогам
// завершённых учебных сессий.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/focusflow-app/focusflow-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет опыт учащегося.
type XP int

// IsValid проверяет, что XP неотрицателен.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add возвращает XP с прибавленной дельтой, не опускаясь ниже нуля.
func (x XP) Add(delta XP) XP {
	result := x + delta
	if result < 0 {
		return 0
	}
	return result
}

// Level представляет уровень учащегося, вычисляемый из XP.
type Level int

// xpPerLevel - XP, необходимый для одного уровня.
const xpPerLevel = 500

// CalculateLevel вычисляет уровень на основе XP.
func CalculateLevel(xp XP) Level {
	if xp < 0 {
		return 0
	}
	return Level(xp / xpPerLevel)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidXP означает отрицательное значение XP.
	ErrInvalidXP = errors.New("xp cannot be negative")

	// ErrLearnerNotFound означает, что учащийся не найден.
	ErrLearnerNotFound = errors.New("learner not found")

	// ErrLearnerAlreadyExists означает дубликат учащегося.
	ErrLearnerAlreadyExists = errors.New("learner already exists")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Learner представляет прогресс одного учащегося.
type Learner struct {
	// ID - идентификатор учащегося (совпадает с owner ID сессий).
	ID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalXP - накопленный опыт.
	TotalXP XP

	// SessionsCompleted - количество завершённых сессий.
	SessionsCompleted int

	// TotalStudySec - суммарное эффективное время учёбы в секундах.
	TotalStudySec int

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// BestStreak - лучшая серия активных дней.
	BestStreak int

	// LastStudyDay - последний день с завершённой сессией (начало дня UTC).
	LastStudyDay time.Time

	// CreatedAt - время регистрации.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewLearner создаёт нового учащегося с нулевым прогрессом.
func NewLearner(id, displayName string, now time.Time) (*Learner, error) {
	if id == "" {
		return nil, errors.New("learner id is required")
	}
	if displayName == "" {
		return nil, errors.New("display name is required")
	}

	return &Learner{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Level возвращает текущий уровень учащегося.
func (l *Learner) Level() Level {
	return CalculateLevel(l.TotalXP)
}

// SessionOutcome - итог одной завершённой сессии, из которого
// начисляется опыт.
type SessionOutcome struct {
	// EffectiveStudySec - эффективное время учёбы в секундах.
	EffectiveStudySec int

	// FocusScore - оценка фокуса (0-100).
	FocusScore int

	// CompletionPct - процент выполнения цели.
	CompletionPct float64

	// FinishedAt - время завершения сессии.
	FinishedAt time.Time
}

// XP-начисление: минута эффективной учёбы стоит 1 XP, высокий фокус
// и достижение цели дают бонусы.
const (
	focusBonusThreshold = 80
	focusBonusXP        = 25
	goalBonusXP         = 50
)

// AwardSession начисляет XP за завершённую сессию и обновляет серию.
// Возвращает величину начисления.
func (l *Learner) AwardSession(outcome SessionOutcome) XP {
	award := XP(outcome.EffectiveStudySec / 60)
	if outcome.FocusScore >= focusBonusThreshold {
		award += focusBonusXP
	}
	if outcome.CompletionPct >= 100 {
		award += goalBonusXP
	}

	l.TotalXP = l.TotalXP.Add(award)
	l.SessionsCompleted++
	l.TotalStudySec += outcome.EffectiveStudySec
	l.extendStreak(outcome.FinishedAt)
	l.UpdatedAt = outcome.FinishedAt

	return award
}

// extendStreak обновляет серию активных дней по дате завершения сессии.
// Пропуск хотя бы одного дня обнуляет текущую серию.
func (l *Learner) extendStreak(at time.Time) {
	day := timeutil.StartOfDay(at)

	switch {
	case l.LastStudyDay.IsZero():
		l.CurrentStreak = 1
	case day.Equal(l.LastStudyDay):
		// Вторая сессия за день серию не удлиняет.
		return
	case timeutil.DaysBetween(l.LastStudyDay, day) == 1:
		l.CurrentStreak++
	default:
		l.CurrentStreak = 1
	}

	l.LastStudyDay = day
	if l.CurrentStreak > l.BestStreak {
		l.BestStreak = l.CurrentStreak
	}
}

// StreakAlive сообщает, жива ли серия на момент t: последняя сессия
// была сегодня или вчера.
func (l *Learner) StreakAlive(t time.Time) bool {
	if l.LastStudyDay.IsZero() {
		return false
	}
	return timeutil.DaysBetween(l.LastStudyDay, timeutil.StartOfDay(t)) <= 1
}

// String возвращает краткое строковое представление.
func (l *Learner) String() string {
	return fmt.Sprintf("Learner{ID: %s, XP: %d, Level: %d, Streak: %d}",
		l.ID, l.TotalXP, l.Level(), l.CurrentStreak)
}

// Clone возвращает глубокую копию.
func (l *Learner) Clone() *Learner {
	c := *l
	return &c
}
