package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT SIGNAL COMMAND
// Browser-side signals feeding the session runtime: presence classifier
// readings, tab visibility flips, fullscreen changes, and classifier
// failure reports. Signals are fire-and-forget; ordering and debouncing
// happen inside the runtime.
// ══════════════════════════════════════════════════════════════════════════════

// SignalKind identifies the signal source.
type SignalKind string

const (
	// SignalPresence - one webcam classifier reading.
	SignalPresence SignalKind = "presence"

	// SignalVisibility - browser tab shown/hidden.
	SignalVisibility SignalKind = "visibility"

	// SignalFullscreen - fullscreen entered/exited.
	SignalFullscreen SignalKind = "fullscreen"

	// SignalClassifierFailed - the presence classifier stopped working.
	SignalClassifierFailed SignalKind = "classifier_failed"
)

// ReportSignalCommand contains one browser signal.
type ReportSignalCommand struct {
	// SessionID identifies the live session.
	SessionID string

	// Kind is the signal source.
	Kind SignalKind

	// Value carries the signal payload:
	//   presence   - subject detected in frame
	//   visibility - tab is hidden
	//   fullscreen - client is in fullscreen
	// Unused for classifier_failed.
	Value bool
}

// Validate validates the command.
func (c ReportSignalCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("report_signal: session_id is required")
	}
	switch c.Kind {
	case SignalPresence, SignalVisibility, SignalFullscreen, SignalClassifierFailed:
		return nil
	}
	return fmt.Errorf("report_signal: unknown signal kind: %q", c.Kind)
}

// ReportSignalHandler handles ReportSignalCommand.
type ReportSignalHandler struct {
	controller SessionController
	logger     *slog.Logger
}

// NewReportSignalHandler creates the handler.
func NewReportSignalHandler(controller SessionController, logger *slog.Logger) *ReportSignalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportSignalHandler{controller: controller, logger: logger}
}

// Handle routes the signal into the runtime.
func (h *ReportSignalHandler) Handle(ctx context.Context, cmd ReportSignalCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	var err error
	switch cmd.Kind {
	case SignalPresence:
		err = h.controller.OnPresenceReading(cmd.SessionID, cmd.Value)
	case SignalVisibility:
		err = h.controller.OnVisibilityChange(cmd.SessionID, cmd.Value)
	case SignalFullscreen:
		err = h.controller.OnFullscreenChange(cmd.SessionID, cmd.Value)
	case SignalClassifierFailed:
		h.logger.Warn("presence classifier failure reported", "session_id", cmd.SessionID)
		err = h.controller.ReportClassifierFailure(cmd.SessionID)
	}
	if err != nil {
		return fmt.Errorf("report_signal: %s: %w", cmd.Kind, err)
	}
	return nil
}
