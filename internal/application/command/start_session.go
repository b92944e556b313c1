package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/progress"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// Created Idle, immediately started: the session begins ticking before
// the response is written.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand contains the data to start a focus session.
type StartSessionCommand struct {
	// OwnerID is the learner starting the session.
	OwnerID string

	// DisplayName registers the learner on first contact.
	DisplayName string

	// SessionType is one of reading, video, quiz_prep, free_form.
	SessionType string

	// PlannedDurationSec is the planned study time.
	PlannedDurationSec int

	// BreakIntervalSec is the time between breaks (0 = no breaks).
	BreakIntervalSec int

	// BreakDurationSec is the length of one break.
	BreakDurationSec int

	// StudyGoalPages is the page goal (0 = none).
	StudyGoalPages int

	// TotalPages is the material length (0 = unknown).
	TotalPages int

	// PresenceDetection enables webcam-based presence pausing.
	PresenceDetection bool
}

// Validate validates the command.
func (c StartSessionCommand) Validate() error {
	if c.OwnerID == "" {
		return errors.New("start_session: owner_id is required")
	}
	if !session.SessionType(c.SessionType).IsValid() {
		return fmt.Errorf("start_session: unknown session type: %q", c.SessionType)
	}
	return nil
}

// StartSessionResult contains the started session's first snapshot.
type StartSessionResult struct {
	Snapshot  session.Snapshot
	StartedAt time.Time
}

// StartSessionHandler handles StartSessionCommand.
type StartSessionHandler struct {
	controller  SessionController
	learnerRepo progress.Repository
	logger      *slog.Logger
}

// NewStartSessionHandler creates the handler.
func NewStartSessionHandler(controller SessionController, learnerRepo progress.Repository, logger *slog.Logger) *StartSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StartSessionHandler{
		controller:  controller,
		learnerRepo: learnerRepo,
		logger:      logger,
	}
}

// Handle starts a session, registering the learner on first contact.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := h.ensureLearner(ctx, cmd); err != nil {
		return nil, err
	}

	cfg := session.Config{
		PlannedDurationSec:       cmd.PlannedDurationSec,
		BreakIntervalSec:         cmd.BreakIntervalSec,
		BreakDurationSec:         cmd.BreakDurationSec,
		StudyGoalPages:           cmd.StudyGoalPages,
		PresenceDetectionEnabled: cmd.PresenceDetection,
	}

	snap, err := h.controller.StartSession(ctx, cmd.OwnerID, session.SessionType(cmd.SessionType), cfg, cmd.TotalPages)
	if err != nil {
		return nil, fmt.Errorf("start_session: %w", err)
	}

	h.logger.Info("focus session started",
		"session_id", snap.SessionID,
		"owner_id", cmd.OwnerID,
		"type", cmd.SessionType)

	return &StartSessionResult{Snapshot: snap, StartedAt: snap.TakenAt}, nil
}

// ensureLearner registers the learner if this is their first session.
func (h *StartSessionHandler) ensureLearner(ctx context.Context, cmd StartSessionCommand) error {
	if h.learnerRepo == nil {
		return nil
	}

	_, err := h.learnerRepo.GetByID(ctx, cmd.OwnerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, progress.ErrLearnerNotFound) {
		return fmt.Errorf("start_session: lookup learner: %w", err)
	}

	name := cmd.DisplayName
	if name == "" {
		name = cmd.OwnerID
	}
	learner, err := progress.NewLearner(cmd.OwnerID, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("start_session: register learner: %w", err)
	}

	if err := h.learnerRepo.Create(ctx, learner); err != nil && !errors.Is(err, progress.ErrLearnerAlreadyExists) {
		return fmt.Errorf("start_session: register learner: %w", err)
	}
	return nil
}
