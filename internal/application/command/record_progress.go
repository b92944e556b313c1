package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS COMMAND
// Updates the pages-read mark of a live session. Backwards navigation
// is legitimate re-reading, so the mark may regress.
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressCommand contains a progress update.
type RecordProgressCommand struct {
	// SessionID identifies the live session.
	SessionID string

	// PagesRead is the current page mark.
	PagesRead int
}

// Validate validates the command.
func (c RecordProgressCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("record_progress: session_id is required")
	}
	if c.PagesRead < 0 {
		return errors.New("record_progress: pages_read cannot be negative")
	}
	return nil
}

// RecordProgressResult contains the updated snapshot.
type RecordProgressResult struct {
	Snapshot session.Snapshot
}

// RecordProgressHandler handles RecordProgressCommand.
type RecordProgressHandler struct {
	controller SessionController
	logger     *slog.Logger
}

// NewRecordProgressHandler creates the handler.
func NewRecordProgressHandler(controller SessionController, logger *slog.Logger) *RecordProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordProgressHandler{controller: controller, logger: logger}
}

// Handle applies the progress update.
func (h *RecordProgressHandler) Handle(ctx context.Context, cmd RecordProgressCommand) (*RecordProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := h.controller.RecordProgress(cmd.SessionID, cmd.PagesRead); err != nil {
		return nil, fmt.Errorf("record_progress: %w", err)
	}

	// RecordProgress returns after the update is applied, so this
	// snapshot already carries the new mark.
	snap, err := h.controller.Snapshot(cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("record_progress: snapshot: %w", err)
	}
	return &RecordProgressResult{Snapshot: snap}, nil
}
