package query

import (
	"context"
	"errors"
	"sort"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE SESSIONS QUERY
// "Кто сейчас занимается": список живых сессий из кеша. Кеш пополняют
// все инстансы, поэтому запрос видит сессии всего кластера, а не
// только локального рантайма.
// ══════════════════════════════════════════════════════════════════════════════

// GetActiveSessionsQuery содержит параметры запроса.
type GetActiveSessionsQuery struct {
	// Limit - максимум записей (по умолчанию 50, максимум 200).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetActiveSessionsQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// ActiveSessionsResult - результат запроса.
type ActiveSessionsResult struct {
	// Sessions - снапшоты живых сессий, отсортированные по elapsed
	// по убыванию (самые длинные сессии первыми).
	Sessions []*SessionDTO `json:"sessions"`

	// Total - общее число живых сессий в кластере.
	Total int `json:"total"`
}

// GetActiveSessionsHandler обрабатывает GetActiveSessionsQuery.
type GetActiveSessionsHandler struct {
	cache session.LiveCache
}

// NewGetActiveSessionsHandler создаёт обработчик.
func NewGetActiveSessionsHandler(cache session.LiveCache) *GetActiveSessionsHandler {
	return &GetActiveSessionsHandler{cache: cache}
}

// Handle выполняет запрос.
func (h *GetActiveSessionsHandler) Handle(ctx context.Context, q GetActiveSessionsQuery) (*ActiveSessionsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ids, err := h.cache.ActiveSessionIDs(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]*SessionDTO, 0, len(ids))
	for _, id := range ids {
		snap, err := h.cache.GetSnapshot(ctx, id)
		if err != nil || snap == nil {
			// Сессия могла финализироваться между SMEMBERS и GET.
			continue
		}
		sessions = append(sessions, snapshotToDTO(*snap))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ElapsedSec > sessions[j].ElapsedSec
	})

	total := len(sessions)
	if len(sessions) > q.Limit {
		sessions = sessions[:q.Limit]
	}

	return &ActiveSessionsResult{Sessions: sessions, Total: total}, nil
}
