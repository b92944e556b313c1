package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - read-only срез состояния сессии для Sync Gateway и кеша.
// Передаётся периодически (best-effort) и один раз при финализации.
type Snapshot struct {
	SessionID   string      `json:"session_id"`
	Generation  string      `json:"generation"`
	OwnerID     string      `json:"owner_id"`
	SessionType SessionType `json:"session_type"`

	Status      Status      `json:"status"`
	PauseReason PauseReason `json:"pause_reason,omitempty"`
	ElapsedSec  int         `json:"elapsed_sec"`

	// BreakRemainingSec - остаток перерыва в секундах. Ненулевой
	// только в статусе OnBreak.
	BreakRemainingSec int `json:"break_remaining_sec,omitempty"`

	PagesRead  int `json:"pages_read"`
	TotalPages int `json:"total_pages"`

	Counters  DistractionCounters `json:"counters"`
	Analytics Analytics           `json:"analytics"`

	Final   bool      `json:"final"`
	TakenAt time.Time `json:"taken_at"`
}

// TakeSnapshot строит снапшот текущего состояния, пересчитав аналитику.
func (s *StudySession) TakeSnapshot(at time.Time) Snapshot {
	analytics := s.Recompute()

	return Snapshot{
		SessionID:   s.ID,
		Generation:  s.Generation,
		OwnerID:     s.OwnerID,
		SessionType: s.Type,
		Status:      s.Status,
		PauseReason: s.PauseReason,
		ElapsedSec:  s.ElapsedSec,

		BreakRemainingSec: s.BreakRemainingSec,

		PagesRead:  s.PagesRead,
		TotalPages: s.TotalPages,
		Counters:   s.Counters,
		Analytics:  analytics,
		Final:      s.Status.IsTerminal(),
		TakenAt:    at,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища сессий.
type Repository interface {
	// Save сохраняет сессию (insert или update).
	Save(ctx context.Context, s *StudySession) error

	// FindByID возвращает сессию по идентификатору.
	// Возвращает ErrSessionNotFound, если сессия не существует.
	FindByID(ctx context.Context, id string) (*StudySession, error)

	// FindActiveByOwner возвращает незавершённые сессии учащегося.
	FindActiveByOwner(ctx context.Context, ownerID string) ([]*StudySession, error)

	// ListFinalized возвращает завершённые сессии учащегося за период.
	ListFinalized(ctx context.Context, ownerID string, since time.Time, limit int) ([]*StudySession, error)
}

// SyncGateway принимает снапшоты сессий. Push - fire-and-forget с точки
// зрения координатора: ошибки ретраятся вне горячего пути и никогда
// не блокируют и не мутируют in-memory состояние.
type SyncGateway interface {
	// Push передаёт снапшот внешнему коллектору.
	Push(ctx context.Context, snap Snapshot) error
}

// LiveCache хранит снапшоты живых сессий для быстрых запросов
// ("кто сейчас занимается").
type LiveCache interface {
	// PutSnapshot сохраняет снапшот живой сессии.
	PutSnapshot(ctx context.Context, snap Snapshot) error

	// GetSnapshot возвращает снапшот по идентификатору сессии.
	GetSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)

	// Remove удаляет сессию из кеша (при финализации).
	Remove(ctx context.Context, sessionID string) error

	// ActiveSessionIDs возвращает идентификаторы живых сессий.
	ActiveSessionIDs(ctx context.Context) ([]string, error)
}
