// Package postgres implements the PostgreSQL persistence layer for FocusFlow Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements progress.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `
	id, display_name, total_xp, sessions_completed, total_study_sec,
	current_streak, best_streak, last_study_day, created_at, updated_at
`

// Create stores a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *progress.Learner) error {
	query := `
		INSERT INTO learners (` + learnerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		l.DisplayName,
		int(l.TotalXP),
		l.SessionsCompleted,
		l.TotalStudySec,
		l.CurrentStreak,
		l.BestStreak,
		nullableTime(l.LastStudyDay),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return progress.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}
	return nil
}

// GetByID returns a learner by ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*progress.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = $1`

	l, err := scanLearner(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to find learner: %w", err)
	}
	return l, nil
}

// Update stores a modified learner.
func (r *LearnerRepository) Update(ctx context.Context, l *progress.Learner) error {
	query := `
		UPDATE learners SET
			display_name = $2,
			total_xp = $3,
			sessions_completed = $4,
			total_study_sec = $5,
			current_streak = $6,
			best_streak = $7,
			last_study_day = $8,
			updated_at = $9
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		l.ID,
		l.DisplayName,
		int(l.TotalXP),
		l.SessionsCompleted,
		l.TotalStudySec,
		l.CurrentStreak,
		l.BestStreak,
		nullableTime(l.LastStudyDay),
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return progress.ErrLearnerNotFound
	}
	return nil
}

// TopByXP returns the highest-XP learners.
func (r *LearnerRepository) TopByXP(ctx context.Context, limit int) ([]*progress.Learner, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + learnerColumns + ` FROM learners ORDER BY total_xp DESC, id LIMIT $1`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top learners: %w", err)
	}
	defer rows.Close()

	var learners []*progress.Learner
	for rows.Next() {
		l, err := scanLearner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learner row: %w", err)
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

func scanLearner(row pgx.Row) (*progress.Learner, error) {
	var (
		l            progress.Learner
		totalXP      int
		lastStudyDay *time.Time
	)

	err := row.Scan(
		&l.ID,
		&l.DisplayName,
		&totalXP,
		&l.SessionsCompleted,
		&l.TotalStudySec,
		&l.CurrentStreak,
		&l.BestStreak,
		&lastStudyDay,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.TotalXP = progress.XP(totalXP)
	if lastStudyDay != nil {
		l.LastStudyDay = *lastStudyDay
	}
	return &l, nil
}
