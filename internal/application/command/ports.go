// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
)

// SessionController is the runtime port used by command handlers.
// Implemented by the session manager.
type SessionController interface {
	StartSession(ctx context.Context, ownerID string, sessionType session.SessionType, cfg session.Config, totalPages int) (session.Snapshot, error)

	Pause(sessionID string) error
	Resume(sessionID string) error
	Cancel(sessionID string) error
	End(sessionID string) error
	RecordProgress(sessionID string, pagesRead int) error

	OnPresenceReading(sessionID string, present bool) error
	OnVisibilityChange(sessionID string, hidden bool) error
	OnFullscreenChange(sessionID string, fullscreen bool) error
	ReportClassifierFailure(sessionID string) error

	Snapshot(sessionID string) (session.Snapshot, error)
	SnapshotByOwner(ownerID string) (session.Snapshot, error)
}
