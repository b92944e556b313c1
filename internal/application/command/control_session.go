package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTROL SESSION COMMAND
// User-initiated pause, resume, cancel and early end. All of these go
// through the session inbox; the returned snapshot may not yet reflect
// the action because events apply asynchronously.
// ══════════════════════════════════════════════════════════════════════════════

// ControlAction identifies the user action.
type ControlAction string

const (
	// ActionPause - manual pause.
	ActionPause ControlAction = "pause"

	// ActionResume - resume from any paused state or a break.
	ActionResume ControlAction = "resume"

	// ActionCancel - abandon the session.
	ActionCancel ControlAction = "cancel"

	// ActionEnd - complete the session before the planned duration.
	ActionEnd ControlAction = "end"
)

// IsValid reports whether the action is known.
func (a ControlAction) IsValid() bool {
	switch a {
	case ActionPause, ActionResume, ActionCancel, ActionEnd:
		return true
	}
	return false
}

// ControlSessionCommand contains a session control request.
type ControlSessionCommand struct {
	// SessionID identifies the live session.
	SessionID string

	// Action is the requested control action.
	Action ControlAction
}

// Validate validates the command.
func (c ControlSessionCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("control_session: session_id is required")
	}
	if !c.Action.IsValid() {
		return fmt.Errorf("control_session: unknown action: %q", c.Action)
	}
	return nil
}

// ControlSessionResult contains the post-dispatch snapshot.
type ControlSessionResult struct {
	Snapshot session.Snapshot
}

// ControlSessionHandler handles ControlSessionCommand.
type ControlSessionHandler struct {
	controller SessionController
	logger     *slog.Logger
}

// NewControlSessionHandler creates the handler.
func NewControlSessionHandler(controller SessionController, logger *slog.Logger) *ControlSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlSessionHandler{controller: controller, logger: logger}
}

// Handle dispatches the action into the session's inbox.
func (h *ControlSessionHandler) Handle(ctx context.Context, cmd ControlSessionCommand) (*ControlSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var err error
	switch cmd.Action {
	case ActionPause:
		err = h.controller.Pause(cmd.SessionID)
	case ActionResume:
		err = h.controller.Resume(cmd.SessionID)
	case ActionCancel:
		err = h.controller.Cancel(cmd.SessionID)
	case ActionEnd:
		err = h.controller.End(cmd.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("control_session: %s: %w", cmd.Action, err)
	}

	h.logger.Info("session control dispatched",
		"session_id", cmd.SessionID, "action", cmd.Action)

	snap, err := h.controller.Snapshot(cmd.SessionID)
	if err != nil {
		// Cancel/end tears the session down; no snapshot is fine.
		return &ControlSessionResult{}, nil
	}
	return &ControlSessionResult{Snapshot: snap}, nil
}
