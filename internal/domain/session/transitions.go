package session

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION TABLE
// ══════════════════════════════════════════════════════════════════════════════
//
// Вместо разрозненных callback-замыканий на каждый сигнал хоста - одна
// явная таблица переходов, ключуемая парой (текущее состояние, вид события).
// Пара без записи в таблице - no-op: повторный вход в уже активную причину
// паузы не производит побочных эффектов.

// Effect сообщает координатору, какое действие времени требуется
// после перехода. Сам агрегат таймерами не владеет.
type Effect int

const (
	// EffectNone - дополнительных действий не требуется.
	EffectNone Effect = iota
	// EffectArmScheduler - возобновить эмиссию тиков.
	EffectArmScheduler
	// EffectDisarmScheduler - приостановить эмиссию тиков.
	EffectDisarmScheduler
	// EffectStartBreak - остановить тики и запустить отсчёт перерыва.
	EffectStartBreak
	// EffectFinalize - сессия достигла терминального состояния.
	EffectFinalize
)

// transitionKey - ключ таблицы переходов.
type transitionKey struct {
	status Status
	kind   EventKind
}

// transitionFunc применяет переход к сессии и возвращает эффект.
type transitionFunc func(s *StudySession, ev Event) Effect

// transitions - переходы, специфичные для конкретного состояния.
var transitions = map[transitionKey]transitionFunc{
	{StatusRunning, EventTick}: func(s *StudySession, ev Event) Effect {
		// ElapsedSec растёт только в Running; в остальных статусах
		// тики отбрасываются отсутствием записи в таблице.
		s.ElapsedSec++
		s.UpdatedAt = ev.At
		return EffectNone
	},

	{StatusRunning, EventPresenceChanged}: func(s *StudySession, ev Event) Effect {
		if !ev.Absent {
			return EffectNone
		}
		// Автопауза по отсутствию - только при включённом классификаторе
		// и только в фокус/фуллскрин режиме.
		if !s.Config.PresenceDetectionEnabled || !s.IsFullscreen {
			return EffectNone
		}

		s.setPaused(StatusPausedPresence, ev.At)
		s.Counters.PresencePauseCount++
		s.presenceEntry = ev.At
		s.PresenceRestored = false
		return EffectDisarmScheduler
	},

	{StatusPausedPresence, EventPresenceChanged}: func(s *StudySession, ev Event) Effect {
		// Возвращение присутствия НЕ возобновляет сессию автоматически -
		// оно лишь разрешает показ подтверждения пользователю.
		if !ev.Absent {
			s.PresenceRestored = true
			s.UpdatedAt = ev.At
		}
		return EffectNone
	},

	{StatusPausedPresence, EventManualResume}: func(s *StudySession, ev Event) Effect {
		s.resume(ev.At)
		return EffectArmScheduler
	},

	{StatusRunning, EventVisibilityChanged}: func(s *StudySession, ev Event) Effect {
		if !ev.Hidden {
			return EffectNone
		}

		s.setPaused(StatusPausedVisibility, ev.At)
		return EffectDisarmScheduler
	},

	{StatusRunning, EventFullscreenChanged}: func(s *StudySession, ev Event) Effect {
		if ev.Fullscreen {
			return EffectNone
		}

		s.setPaused(StatusPausedVisibility, ev.At)
		return EffectDisarmScheduler
	},

	{StatusPausedVisibility, EventManualResume}: func(s *StudySession, ev Event) Effect {
		s.resume(ev.At)
		// Возобновление из visibility-паузы возвращает фуллскрин.
		s.IsFullscreen = true
		return EffectArmScheduler
	},

	{StatusPausedManual, EventManualResume}: func(s *StudySession, ev Event) Effect {
		s.resume(ev.At)
		return EffectArmScheduler
	},

	{StatusRunning, EventBreakDue}: func(s *StudySession, ev Event) Effect {
		s.setPaused(StatusOnBreak, ev.At)
		s.BreakRemainingSec = s.Config.BreakDurationSec
		return EffectStartBreak
	},

	{StatusOnBreak, EventBreakExpired}: func(s *StudySession, ev Event) Effect {
		s.resume(ev.At)
		return EffectArmScheduler
	},

	{StatusOnBreak, EventManualResume}: func(s *StudySession, ev Event) Effect {
		s.resume(ev.At)
		return EffectArmScheduler
	},
}

// anyState - переходы, допустимые из любого нетерминального состояния.
var anyState = map[EventKind]transitionFunc{
	EventSessionEnd: func(s *StudySession, ev Event) Effect {
		// SessionEnd не применим к ещё не запущенной сессии.
		if s.Status == StatusIdle {
			return EffectNone
		}

		s.finalize(StatusCompleted, ev.At)
		return EffectFinalize
	},

	EventCancel: func(s *StudySession, ev Event) Effect {
		s.finalize(StatusCancelled, ev.At)
		return EffectFinalize
	},

	EventClassifierFailed: func(s *StudySession, ev Event) Effect {
		// Сбой классификатора - не сбой сессии: присутствие просто
		// перестаёт отслеживаться до конца сессии. Уже активная
		// presence-пауза остаётся ждать ручного возобновления.
		s.DisablePresenceDetection()
		s.UpdatedAt = ev.At
		return EffectNone
	},

	EventRecordProgress: func(s *StudySession, ev Event) Effect {
		// Отрицательное значение отфильтровано на границе API;
		// здесь оно молча отбрасывается.
		if ev.Pages < 0 {
			return EffectNone
		}

		s.PagesRead = ev.Pages
		s.UpdatedAt = ev.At
		return EffectNone
	},

	EventManualPause: func(s *StudySession, ev Event) Effect {
		if s.Status == StatusIdle || s.Status == StatusPausedManual {
			return EffectNone
		}

		// Ручная пауза поверх presence-паузы закрывает away-интервал:
		// с этого момента отсутствие - осознанный выбор пользователя.
		s.closeAwayInterval(ev.At)
		s.setPaused(StatusPausedManual, ev.At)
		s.BreakRemainingSec = 0
		return EffectDisarmScheduler
	},
}

// Apply применяет событие к сессии строго последовательно и возвращает
// эффект для координатора. Событие, доставленное в терминальную сессию,
// возвращает ErrSessionFinalized - наверху оно либо молча отбрасывается
// (production), либо приводит к fail-fast (debug).
func (s *StudySession) Apply(ev Event) (Effect, error) {
	if s.Status.IsTerminal() {
		return EffectNone, ErrSessionFinalized
	}

	s.accumulate(ev)

	fn, ok := transitions[transitionKey{s.Status, ev.Kind}]
	if !ok {
		fn, ok = anyState[ev.Kind]
	}
	if !ok {
		return EffectNone, nil
	}

	return fn(s, ev), nil
}

// accumulate обновляет счётчики отвлечений. Аккумулятор слушает сигналы
// хоста независимо от run/pause статуса сессии.
func (s *StudySession) accumulate(ev Event) {
	switch ev.Kind {
	case EventVisibilityChanged:
		if ev.Hidden {
			s.Counters.TabSwitches++
		}
	case EventFullscreenChanged:
		if !ev.Fullscreen && s.IsFullscreen {
			s.Counters.FullscreenExits++
		}
		s.IsFullscreen = ev.Fullscreen
	}
}
