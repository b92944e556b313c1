// Package postgres implements the PostgreSQL persistence layer for FocusFlow Hub.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STUDY SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create study_sessions table
-- Version: 001

CREATE TABLE IF NOT EXISTS study_sessions (
    id UUID PRIMARY KEY,
    generation UUID NOT NULL,
    owner_id VARCHAR(100) NOT NULL,
    session_type VARCHAR(20) NOT NULL,

    -- Immutable session configuration
    planned_duration_sec INTEGER NOT NULL,
    break_interval_sec INTEGER NOT NULL DEFAULT 0,
    break_duration_sec INTEGER NOT NULL DEFAULT 0,
    study_goal_pages INTEGER NOT NULL DEFAULT 0,
    presence_detection BOOLEAN NOT NULL DEFAULT FALSE,

    status VARCHAR(20) NOT NULL,
    pause_reason VARCHAR(20) NOT NULL DEFAULT '',
    elapsed_sec INTEGER NOT NULL DEFAULT 0,
    pages_read INTEGER NOT NULL DEFAULT 0,
    total_pages INTEGER NOT NULL DEFAULT 0,

    -- Distraction counters
    tab_switches INTEGER NOT NULL DEFAULT 0,
    fullscreen_exits INTEGER NOT NULL DEFAULT 0,
    presence_pauses INTEGER NOT NULL DEFAULT 0,
    away_sec INTEGER NOT NULL DEFAULT 0,

    -- Frozen analytics (computed at finalization)
    break_time_sec INTEGER NOT NULL DEFAULT 0,
    effective_study_sec INTEGER NOT NULL DEFAULT 0,
    distraction_penalty INTEGER NOT NULL DEFAULT 0,
    focus_score INTEGER NOT NULL DEFAULT 0,
    productivity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    completion_pct DOUBLE PRECISION NOT NULL DEFAULT 0,

    started_at TIMESTAMP WITH TIME ZONE,
    finalized_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_type CHECK (session_type IN ('reading', 'video', 'quiz_prep', 'free_form')),
    CONSTRAINT valid_status CHECK (status IN ('idle', 'running', 'paused_manual', 'paused_presence', 'paused_visibility', 'on_break', 'completed', 'cancelled')),
    CONSTRAINT valid_elapsed CHECK (elapsed_sec >= 0),
    CONSTRAINT valid_planned_duration CHECK (planned_duration_sec > 0),
    CONSTRAINT valid_focus_score CHECK (focus_score >= 0 AND focus_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner_id ON study_sessions(owner_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON study_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_owner_finalized ON study_sessions(owner_id, finalized_at DESC)
    WHERE status IN ('completed', 'cancelled');
`

const migration001Down = `
DROP TABLE IF EXISTS study_sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create learners table
-- Version: 002

CREATE TABLE IF NOT EXISTS learners (
    id VARCHAR(100) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    total_xp INTEGER NOT NULL DEFAULT 0,
    sessions_completed INTEGER NOT NULL DEFAULT 0,
    total_study_sec BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_study_day TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_learners_total_xp ON learners(total_xp DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS learners;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version   int
	Name      string
	Up        string
	Down      string
	AppliedAt time.Time
}

// GetMigrations returns all migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_study_sessions", Up: migration001Up, Down: migration001Down},
		{Version: 2, Name: "create_learners", Up: migration002Up, Down: migration002Down},
	}
}

// Migrator applies schema migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the built-in migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// EnsureMigrationTable creates the tracking table if needed.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create migration table: %v", ErrMigrationFailed, err)
	}
	return nil
}

// AppliedVersions returns the set of applied migration versions.
func (m *Migrator) AppliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: query applied migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("%w: scan migration row: %v", ErrMigrationFailed, err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations in order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, mig := range pending {
		mig := mig
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Up); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	latest := 0
	for v := range applied {
		if v > latest {
			latest = v
		}
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == latest {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: unknown applied version %d", ErrMigrationFailed, latest)
	}

	err = m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.Down); err != nil {
			return fmt.Errorf("revert migration %d (%s): %w", target.Version, target.Name, err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, target.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}
