// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION QUERY
// Возвращает снапшот сессии: сначала ищет в живом рантайме этого
// инстанса, затем в кеше живых сессий (сессия может идти на другом
// инстансе), затем в постоянном хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// ErrSessionNotFound - сессия не найдена ни в одном источнике.
var ErrSessionNotFound = errors.New("session not found")

// LiveSessionReader читает снапшоты сессий, идущих на этом инстансе.
// Реализуется менеджером сессий.
type LiveSessionReader interface {
	Snapshot(sessionID string) (session.Snapshot, error)
	SnapshotByOwner(ownerID string) (session.Snapshot, error)
}

// GetSessionQuery содержит параметры запроса.
// Заполняется ровно одно из двух полей.
type GetSessionQuery struct {
	// SessionID - идентификатор сессии.
	SessionID string

	// OwnerID - идентификатор учащегося (вернёт его активную сессию).
	OwnerID string
}

// Validate проверяет корректность параметров запроса.
func (q GetSessionQuery) Validate() error {
	if q.SessionID == "" && q.OwnerID == "" {
		return errors.New("either session_id or owner_id is required")
	}
	if q.SessionID != "" && q.OwnerID != "" {
		return errors.New("session_id and owner_id are mutually exclusive")
	}
	return nil
}

// SessionDTO - DTO снапшота сессии для внешних потребителей.
type SessionDTO struct {
	SessionID   string `json:"session_id"`
	OwnerID     string `json:"owner_id"`
	SessionType string `json:"session_type"`

	Status            string `json:"status"`
	PauseReason       string `json:"pause_reason,omitempty"`
	ElapsedSec        int    `json:"elapsed_sec"`
	BreakRemainingSec int    `json:"break_remaining_sec,omitempty"`

	PagesRead  int `json:"pages_read"`
	TotalPages int `json:"total_pages"`

	TabSwitches        int `json:"tab_switches"`
	FullscreenExits    int `json:"fullscreen_exits"`
	PresencePauseCount int `json:"presence_pause_count"`
	AwaySec            int `json:"away_sec"`

	BreakTimeSec          int     `json:"break_time_sec"`
	EffectiveStudyTimeSec int     `json:"effective_study_time_sec"`
	FocusScore            int     `json:"focus_score"`
	ProductivityScore     float64 `json:"productivity_score"`
	CompletionPct         float64 `json:"completion_pct"`

	Final   bool      `json:"final"`
	TakenAt time.Time `json:"taken_at"`
}

// GetSessionHandler обрабатывает GetSessionQuery.
type GetSessionHandler struct {
	live  LiveSessionReader
	cache session.LiveCache
	repo  session.Repository
}

// NewGetSessionHandler создаёт обработчик. Каждый из источников
// опционален: nil источник просто пропускается.
func NewGetSessionHandler(live LiveSessionReader, cache session.LiveCache, repo session.Repository) *GetSessionHandler {
	return &GetSessionHandler{live: live, cache: cache, repo: repo}
}

// Handle выполняет запрос.
func (h *GetSessionHandler) Handle(ctx context.Context, q GetSessionQuery) (*SessionDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.OwnerID != "" {
		return h.byOwner(ctx, q.OwnerID)
	}
	return h.byID(ctx, q.SessionID)
}

func (h *GetSessionHandler) byID(ctx context.Context, sessionID string) (*SessionDTO, error) {
	if h.live != nil {
		if snap, err := h.live.Snapshot(sessionID); err == nil {
			return snapshotToDTO(snap), nil
		}
	}
	if h.cache != nil {
		if snap, err := h.cache.GetSnapshot(ctx, sessionID); err == nil && snap != nil {
			return snapshotToDTO(*snap), nil
		}
	}
	if h.repo != nil {
		sess, err := h.repo.FindByID(ctx, sessionID)
		if err == nil {
			snap := sess.TakeSnapshot(time.Now())
			return snapshotToDTO(snap), nil
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return nil, err
		}
	}
	return nil, ErrSessionNotFound
}

func (h *GetSessionHandler) byOwner(ctx context.Context, ownerID string) (*SessionDTO, error) {
	if h.live != nil {
		if snap, err := h.live.SnapshotByOwner(ownerID); err == nil {
			return snapshotToDTO(snap), nil
		}
	}
	if h.repo != nil {
		active, err := h.repo.FindActiveByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			snap := active[0].TakeSnapshot(time.Now())
			return snapshotToDTO(snap), nil
		}
	}
	return nil, ErrSessionNotFound
}

// snapshotToDTO конвертирует доменный снапшот в DTO.
func snapshotToDTO(snap session.Snapshot) *SessionDTO {
	return &SessionDTO{
		SessionID:   snap.SessionID,
		OwnerID:     snap.OwnerID,
		SessionType: string(snap.SessionType),
		Status:      string(snap.Status),
		PauseReason: string(snap.PauseReason),
		ElapsedSec:  snap.ElapsedSec,

		BreakRemainingSec: snap.BreakRemainingSec,

		PagesRead:  snap.PagesRead,
		TotalPages: snap.TotalPages,

		TabSwitches:        snap.Counters.TabSwitches,
		FullscreenExits:    snap.Counters.FullscreenExits,
		PresencePauseCount: snap.Counters.PresencePauseCount,
		AwaySec:            snap.Counters.AwaySec,

		BreakTimeSec:          snap.Analytics.BreakTimeSec,
		EffectiveStudyTimeSec: snap.Analytics.EffectiveStudyTimeSec,
		FocusScore:            snap.Analytics.FocusScore,
		ProductivityScore:     snap.Analytics.ProductivityScore,
		CompletionPct:         snap.Analytics.CompletionPct,

		Final:   snap.Final,
		TakenAt: snap.TakenAt,
	}
}
