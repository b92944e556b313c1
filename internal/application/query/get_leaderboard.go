package query

import (
	"context"
	"errors"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ учащихся по накопленному XP. Ранги считаются от 1; учащиеся
// с равным XP упорядочены по идентификатору (так же сортирует
// хранилище), поэтому порядок стабилен между запросами.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// LeaderboardEntryDTO - запись лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// LearnerID - идентификатор учащегося.
	LearnerID string `json:"learner_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// XP - накопленные очки опыта.
	XP int `json:"xp"`

	// Level - уровень.
	Level int `json:"level"`

	// CurrentStreak - текущая серия дней занятий.
	CurrentStreak int `json:"current_streak"`

	// SessionsCompleted - завершённые сессии за всё время.
	SessionsCompleted int `json:"sessions_completed"`
}

// LeaderboardResult - результат запроса.
type LeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`
}

// GetLeaderboardHandler обрабатывает GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	repo progress.Repository
}

// NewGetLeaderboardHandler создаёт обработчик.
func NewGetLeaderboardHandler(repo progress.Repository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	learners, err := h.repo.TopByXP(ctx, q.Limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntryDTO, 0, len(learners))
	for i, l := range learners {
		entries = append(entries, LeaderboardEntryDTO{
			Rank:              i + 1,
			LearnerID:         l.ID,
			DisplayName:       l.DisplayName,
			XP:                int(l.TotalXP),
			Level:             int(l.Level()),
			CurrentStreak:     l.CurrentStreak,
			SessionsCompleted: l.SessionsCompleted,
		})
	}

	return &LeaderboardResult{Entries: entries}, nil
}
