// Package postgres implements the PostgreSQL persistence layer for FocusFlow Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `
	id, generation, owner_id, session_type,
	planned_duration_sec, break_interval_sec, break_duration_sec,
	study_goal_pages, presence_detection,
	status, pause_reason, elapsed_sec, pages_read, total_pages,
	tab_switches, fullscreen_exits, presence_pauses, away_sec,
	break_time_sec, effective_study_sec, distraction_penalty,
	focus_score, productivity_score, completion_pct,
	started_at, finalized_at, created_at, updated_at
`

// Save stores a session, inserting or updating by ID.
func (r *SessionRepository) Save(ctx context.Context, s *session.StudySession) error {
	query := `
		INSERT INTO study_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		ON CONFLICT (id) DO UPDATE SET
			generation = EXCLUDED.generation,
			status = EXCLUDED.status,
			pause_reason = EXCLUDED.pause_reason,
			elapsed_sec = EXCLUDED.elapsed_sec,
			pages_read = EXCLUDED.pages_read,
			total_pages = EXCLUDED.total_pages,
			tab_switches = EXCLUDED.tab_switches,
			fullscreen_exits = EXCLUDED.fullscreen_exits,
			presence_pauses = EXCLUDED.presence_pauses,
			away_sec = EXCLUDED.away_sec,
			break_time_sec = EXCLUDED.break_time_sec,
			effective_study_sec = EXCLUDED.effective_study_sec,
			distraction_penalty = EXCLUDED.distraction_penalty,
			focus_score = EXCLUDED.focus_score,
			productivity_score = EXCLUDED.productivity_score,
			completion_pct = EXCLUDED.completion_pct,
			started_at = EXCLUDED.started_at,
			finalized_at = EXCLUDED.finalized_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Generation,
		s.OwnerID,
		string(s.Type),
		s.Config.PlannedDurationSec,
		s.Config.BreakIntervalSec,
		s.Config.BreakDurationSec,
		s.Config.StudyGoalPages,
		s.Config.PresenceDetectionEnabled,
		string(s.Status),
		string(s.PauseReason),
		s.ElapsedSec,
		s.PagesRead,
		s.TotalPages,
		s.Counters.TabSwitches,
		s.Counters.FullscreenExits,
		s.Counters.PresencePauseCount,
		s.Counters.AwaySec,
		s.Analytics.BreakTimeSec,
		s.Analytics.EffectiveStudyTimeSec,
		s.Analytics.DistractionPenalty,
		s.Analytics.FocusScore,
		s.Analytics.ProductivityScore,
		s.Analytics.CompletionPct,
		nullableTime(s.StartedAt),
		nullableTime(s.FinalizedAt),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID returns a session by ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*session.StudySession, error) {
	query := `SELECT ` + sessionColumns + ` FROM study_sessions WHERE id = $1`

	s, err := scanSession(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// FindActiveByOwner returns the owner's non-terminal sessions.
func (r *SessionRepository) FindActiveByOwner(ctx context.Context, ownerID string) ([]*session.StudySession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM study_sessions
		WHERE owner_id = $1 AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListFinalized returns the owner's finalized sessions since a point in time.
func (r *SessionRepository) ListFinalized(ctx context.Context, ownerID string, since time.Time, limit int) ([]*session.StudySession, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM study_sessions
		WHERE owner_id = $1
		  AND status IN ('completed', 'cancelled')
		  AND finalized_at >= $2
		ORDER BY finalized_at DESC
		LIMIT $3
	`

	rows, err := r.conn.Query(ctx, query, ownerID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query finalized sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanSession(row pgx.Row) (*session.StudySession, error) {
	var (
		s           session.StudySession
		sessionType string
		status      string
		pauseReason string
		startedAt   *time.Time
		finalizedAt *time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.Generation,
		&s.OwnerID,
		&sessionType,
		&s.Config.PlannedDurationSec,
		&s.Config.BreakIntervalSec,
		&s.Config.BreakDurationSec,
		&s.Config.StudyGoalPages,
		&s.Config.PresenceDetectionEnabled,
		&status,
		&pauseReason,
		&s.ElapsedSec,
		&s.PagesRead,
		&s.TotalPages,
		&s.Counters.TabSwitches,
		&s.Counters.FullscreenExits,
		&s.Counters.PresencePauseCount,
		&s.Counters.AwaySec,
		&s.Analytics.BreakTimeSec,
		&s.Analytics.EffectiveStudyTimeSec,
		&s.Analytics.DistractionPenalty,
		&s.Analytics.FocusScore,
		&s.Analytics.ProductivityScore,
		&s.Analytics.CompletionPct,
		&startedAt,
		&finalizedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Type = session.SessionType(sessionType)
	s.Status = session.Status(status)
	s.PauseReason = session.PauseReason(pauseReason)
	if startedAt != nil {
		s.StartedAt = *startedAt
	}
	if finalizedAt != nil {
		s.FinalizedAt = *finalizedAt
	}
	return &s, nil
}

func scanSessions(rows pgx.Rows) ([]*session.StudySession, error) {
	var sessions []*session.StudySession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
