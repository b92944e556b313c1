package query

import (
	"context"
	"errors"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDY STATS QUERY
// Агрегирует завершённые сессии учащегося за период: суммарное и
// чистое учебное время, средние оценки фокуса и продуктивности,
// прочитанные страницы.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudyStatsQuery содержит параметры запроса.
type GetStudyStatsQuery struct {
	// OwnerID - идентификатор учащегося.
	OwnerID string

	// Days - глубина периода в днях (по умолчанию 7, максимум 90).
	Days int

	// Limit - максимум учитываемых сессий (по умолчанию 200).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetStudyStatsQuery) Validate() error {
	if q.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if q.Days < 0 {
		return errors.New("days cannot be negative")
	}
	if q.Days == 0 {
		q.Days = 7
	}
	if q.Days > 90 {
		q.Days = 90
	}
	if q.Limit <= 0 {
		q.Limit = 200
	}
	return nil
}

// StudyStatsDTO - агрегированная статистика за период.
type StudyStatsDTO struct {
	OwnerID string `json:"owner_id"`
	Days    int    `json:"days"`

	// SessionsCompleted - сессии со статусом completed.
	SessionsCompleted int `json:"sessions_completed"`

	// SessionsCancelled - отменённые сессии.
	SessionsCancelled int `json:"sessions_cancelled"`

	TotalStudySec     int `json:"total_study_sec"`
	EffectiveStudySec int `json:"effective_study_sec"`
	TotalBreakSec     int `json:"total_break_sec"`
	TotalAwaySec      int `json:"total_away_sec"`
	PagesRead         int `json:"pages_read"`

	// AvgFocusScore - средний фокус по завершённым сессиям.
	AvgFocusScore float64 `json:"avg_focus_score"`

	// AvgProductivityScore - средняя продуктивность.
	AvgProductivityScore float64 `json:"avg_productivity_score"`
}

// GetStudyStatsHandler обрабатывает GetStudyStatsQuery.
type GetStudyStatsHandler struct {
	repo session.Repository
}

// NewGetStudyStatsHandler создаёт обработчик.
func NewGetStudyStatsHandler(repo session.Repository) *GetStudyStatsHandler {
	return &GetStudyStatsHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetStudyStatsHandler) Handle(ctx context.Context, q GetStudyStatsQuery) (*StudyStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -q.Days)
	sessions, err := h.repo.ListFinalized(ctx, q.OwnerID, since, q.Limit)
	if err != nil {
		return nil, err
	}

	stats := &StudyStatsDTO{OwnerID: q.OwnerID, Days: q.Days}
	var focusSum, productivitySum float64
	var scored int

	for _, s := range sessions {
		switch s.Status {
		case session.StatusCompleted:
			stats.SessionsCompleted++
		case session.StatusCancelled:
			stats.SessionsCancelled++
		}

		analytics := s.Recompute()
		stats.TotalStudySec += s.ElapsedSec
		stats.EffectiveStudySec += analytics.EffectiveStudyTimeSec
		stats.TotalBreakSec += analytics.BreakTimeSec
		stats.TotalAwaySec += s.Counters.AwaySec
		stats.PagesRead += s.PagesRead

		// Отменённые сессии не портят средние оценки.
		if s.Status == session.StatusCompleted {
			focusSum += float64(analytics.FocusScore)
			productivitySum += analytics.ProductivityScore
			scored++
		}
	}

	if scored > 0 {
		stats.AvgFocusScore = focusSum / float64(scored)
		stats.AvgProductivityScore = productivitySum / float64(scored)
	}

	return stats, nil
}
