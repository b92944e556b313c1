package session

// ══════════════════════════════════════════════════════════════════════════════
// DISTRACTION / ANALYTICS ACCUMULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Веса штрафов за отвлечения. Значения зафиксированы для поведенческой
// совместимости и не подлежат изменению.
const (
	tabSwitchPenalty      = 5
	fullscreenExitPenalty = 10
	presencePausePenalty  = 3

	pacePerMinuteWeight  = 20.0
	goalCompletionWeight = 0.5
)

// Analytics содержит производные метрики сессии. Пересчитываются с нуля
// на каждом снапшоте (не инкрементально - чтобы исключить дрейф);
// после финализации не изменяются.
type Analytics struct {
	// BreakTimeSec - вычисленное суммарное время перерывов.
	BreakTimeSec int

	// EffectiveStudyTimeSec - чистое учебное время:
	// elapsed - away - breakTime, не меньше нуля.
	EffectiveStudyTimeSec int

	// DistractionPenalty - суммарный штраф за отвлечения.
	DistractionPenalty int

	// FocusScore - эвристическая оценка фокуса, 0-100.
	FocusScore int

	// ProductivityScore - темп чтения + выполнение цели, 0-100.
	ProductivityScore float64

	// CompletionPct - процент завершения материала/цели, 0-100.
	CompletionPct float64
}

// ComputeAnalytics пересчитывает все метрики с нуля из текущих счётчиков.
// Повторный вызов на тех же счётчиках даёт идентичный результат.
func ComputeAnalytics(s *StudySession) Analytics {
	var a Analytics

	if s.Config.BreakIntervalSec > 0 {
		a.BreakTimeSec = (s.ElapsedSec / s.Config.BreakIntervalSec) * s.Config.BreakDurationSec
	}

	a.EffectiveStudyTimeSec = s.ElapsedSec - s.Counters.AwaySec - a.BreakTimeSec
	if a.EffectiveStudyTimeSec < 0 {
		a.EffectiveStudyTimeSec = 0
	}

	a.DistractionPenalty = s.Counters.TabSwitches*tabSwitchPenalty +
		s.Counters.FullscreenExits*fullscreenExitPenalty +
		s.Counters.PresencePauseCount*presencePausePenalty

	a.FocusScore = clampInt(100-a.DistractionPenalty, 0, 100)

	if a.EffectiveStudyTimeSec > 0 {
		pagesPerMinute := float64(s.PagesRead) / (float64(a.EffectiveStudyTimeSec) / 60.0)

		var goalCompletion float64
		if s.Config.StudyGoalPages > 0 {
			goalCompletion = float64(s.PagesRead) / float64(s.Config.StudyGoalPages) * 100.0
		}

		a.ProductivityScore = clampFloat(
			pagesPerMinute*pacePerMinuteWeight+goalCompletion*goalCompletionWeight,
			0, 100,
		)
	}

	a.CompletionPct = clampFloat(completionPct(s), 0, 100)

	return a
}

// completionPct выбирает максимум из прогресса по материалу и по цели.
func completionPct(s *StudySession) float64 {
	var byPages, byGoal float64

	if s.TotalPages > 0 {
		byPages = float64(s.PagesRead) / float64(s.TotalPages) * 100.0
	}
	if s.Config.StudyGoalPages > 0 {
		byGoal = float64(s.PagesRead) / float64(s.Config.StudyGoalPages) * 100.0
	}

	if byGoal > byPages {
		return byGoal
	}
	return byPages
}

// Recompute обновляет метрики сессии. Для терминальной сессии аналитика
// заморожена - повторный пересчёт не выполняется.
func (s *StudySession) Recompute() Analytics {
	if s.Status.IsTerminal() {
		return s.Analytics
	}

	s.Analytics = ComputeAnalytics(s)
	return s.Analytics
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
