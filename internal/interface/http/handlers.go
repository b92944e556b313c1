package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/focusflow-app/focusflow-hub/internal/application/command"
	"github.com/focusflow-app/focusflow-hub/internal/application/query"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/runtime"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "FocusFlow Hub API",
		"version":     "v1",
		"description": "Focus session controller for the FocusFlow learning platform",
		"endpoints": map[string]string{
			"health":      "/health",
			"sessions":    "/api/v1/sessions",
			"active":      "/api/v1/sessions/active",
			"leaderboard": "/api/v1/leaderboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// startSessionRequest is the body of POST /api/v1/sessions.
type startSessionRequest struct {
	OwnerID            string `json:"owner_id"`
	DisplayName        string `json:"display_name,omitempty"`
	SessionType        string `json:"session_type"`
	PlannedDurationSec int    `json:"planned_duration_sec"`
	BreakIntervalSec   int    `json:"break_interval_sec"`
	BreakDurationSec   int    `json:"break_duration_sec"`
	StudyGoalPages     int    `json:"study_goal_pages"`
	TotalPages         int    `json:"total_pages"`
	PresenceDetection  bool   `json:"presence_detection"`
}

// handleStartSession handles POST /api/v1/sessions.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.StartSessionCommand{
		OwnerID:            req.OwnerID,
		DisplayName:        req.DisplayName,
		SessionType:        req.SessionType,
		PlannedDurationSec: req.PlannedDurationSec,
		BreakIntervalSec:   req.BreakIntervalSec,
		BreakDurationSec:   req.BreakDurationSec,
		StudyGoalPages:     req.StudyGoalPages,
		TotalPages:         req.TotalPages,
		PresenceDetection:  req.PresenceDetection,
	}

	res, err := s.deps.StartSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res.Snapshot)
}

// sessionActionRequest is the body of POST /api/v1/sessions/{id}/actions.
type sessionActionRequest struct {
	Action string `json:"action"`
}

// handleSessionAction handles pause/resume/cancel/end.
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	if s.deps.ControlSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	var req sessionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.ControlSessionCommand{
		SessionID: r.PathValue("id"),
		Action:    command.ControlAction(req.Action),
	}

	res, err := s.deps.ControlSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Snapshot)
}

// recordProgressRequest is the body of PUT /api/v1/sessions/{id}/progress.
type recordProgressRequest struct {
	PagesRead int `json:"pages_read"`
}

// handleRecordProgress handles PUT /api/v1/sessions/{id}/progress.
func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	var req recordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.RecordProgressCommand{
		SessionID: r.PathValue("id"),
		PagesRead: req.PagesRead,
	}

	res, err := s.deps.RecordProgressHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res.Snapshot)
}

// reportSignalRequest is the body of POST /api/v1/sessions/{id}/signals.
type reportSignalRequest struct {
	Kind  string `json:"kind"`
	Value bool   `json:"value"`
}

// handleReportSignal handles browser signal ingestion.
// Signals are accepted, not processed synchronously: the runtime
// debounces and orders them internally.
func (s *Server) handleReportSignal(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReportSignalHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Signal handler not configured")
		return
	}

	var req reportSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.ReportSignalCommand{
		SessionID: r.PathValue("id"),
		Kind:      command.SignalKind(req.Kind),
		Value:     req.Value,
	}

	if err := s.deps.ReportSignalHandler.Handle(r.Context(), cmd); err != nil {
		s.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSession handles GET /api/v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Query handler not configured")
		return
	}

	dto, err := s.deps.GetSessionHandler.Handle(r.Context(), query.GetSessionQuery{SessionID: r.PathValue("id")})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto)
}

// handleGetOwnerSession handles GET /api/v1/learners/{id}/session.
func (s *Server) handleGetOwnerSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Query handler not configured")
		return
	}

	dto, err := s.deps.GetSessionHandler.Handle(r.Context(), query.GetSessionQuery{OwnerID: r.PathValue("id")})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto)
}

// handleGetActiveSessions handles GET /api/v1/sessions/active.
func (s *Server) handleGetActiveSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActiveSessionsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Query handler not configured")
		return
	}

	q := query.GetActiveSessionsQuery{Limit: getQueryParamInt(r, "limit", 0)}
	res, err := s.deps.GetActiveSessionsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleGetStudyStats handles GET /api/v1/learners/{id}/stats.
func (s *Server) handleGetStudyStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudyStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Query handler not configured")
		return
	}

	q := query.GetStudyStatsQuery{
		OwnerID: r.PathValue("id"),
		Days:    getQueryParamInt(r, "days", 0),
		Limit:   getQueryParamInt(r, "limit", 0),
	}
	stats, err := s.deps.GetStudyStatsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Query handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{Limit: getQueryParamInt(r, "limit", 0)}
	res, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListJobs handles GET /api/v1/admin/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.JobAdmin == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Background jobs not configured")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.JobAdmin.ListJobs())
}

// handleJobHistory handles GET /api/v1/admin/jobs/history.
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.JobAdmin == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Background jobs not configured")
		return
	}

	limit := getQueryParamInt(r, "limit", 50)
	writeJSON(w, http.StatusOK, s.deps.JobAdmin.History(limit))
}

// handleRunJob handles POST /api/v1/admin/jobs/{name}/run.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.JobAdmin == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Background jobs not configured")
		return
	}

	result, err := s.deps.JobAdmin.RunNow(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeJSONError(w, http.StatusNotFound, "job_not_found", "No registered job with this name")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeCommandError maps command-side errors to HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrActiveSessionExists):
		writeJSONError(w, http.StatusConflict, "session_exists", "The learner already has an active session")
	case errors.Is(err, runtime.ErrNoActiveSession):
		writeJSONError(w, http.StatusNotFound, "session_not_found", "No active session with this ID")
	case errors.Is(err, session.ErrSessionFinalized):
		writeJSONError(w, http.StatusConflict, "session_finalized", "The session has already finished")
	default:
		// Command validation failures carry no sentinel; everything
		// else from Validate is a client error.
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

// writeQueryError maps query-side errors to HTTP status codes.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrSessionNotFound), errors.Is(err, session.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, "session_not_found", "Session not found")
	default:
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}
