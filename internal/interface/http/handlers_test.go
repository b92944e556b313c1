package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusflow-app/focusflow-hub/internal/application/command"
	"github.com/focusflow-app/focusflow-hub/internal/application/query"
	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/runtime"
	"github.com/focusflow-app/focusflow-hub/internal/infrastructure/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubController backs the command handlers in tests.
type stubController struct {
	snapshots map[string]session.Snapshot
	startErr  error
	actionErr error
	calls     []string
}

func newStubController() *stubController {
	return &stubController{snapshots: make(map[string]session.Snapshot)}
}

func (f *stubController) StartSession(_ context.Context, ownerID string, sessionType session.SessionType, _ session.Config, totalPages int) (session.Snapshot, error) {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return session.Snapshot{}, f.startErr
	}
	snap := session.Snapshot{
		SessionID:   "sess-1",
		OwnerID:     ownerID,
		SessionType: sessionType,
		Status:      session.StatusRunning,
		TotalPages:  totalPages,
	}
	f.snapshots[snap.SessionID] = snap
	return snap, nil
}

func (f *stubController) Pause(string) error { f.calls = append(f.calls, "pause"); return f.actionErr }
func (f *stubController) Resume(string) error {
	f.calls = append(f.calls, "resume")
	return f.actionErr
}
func (f *stubController) Cancel(string) error {
	f.calls = append(f.calls, "cancel")
	return f.actionErr
}
func (f *stubController) End(string) error { f.calls = append(f.calls, "end"); return f.actionErr }

func (f *stubController) RecordProgress(sessionID string, pagesRead int) error {
	if f.actionErr != nil {
		return f.actionErr
	}
	snap := f.snapshots[sessionID]
	snap.PagesRead = pagesRead
	f.snapshots[sessionID] = snap
	return nil
}

func (f *stubController) OnPresenceReading(string, bool) error {
	f.calls = append(f.calls, "presence")
	return f.actionErr
}
func (f *stubController) OnVisibilityChange(string, bool) error {
	f.calls = append(f.calls, "visibility")
	return f.actionErr
}
func (f *stubController) OnFullscreenChange(string, bool) error {
	f.calls = append(f.calls, "fullscreen")
	return f.actionErr
}
func (f *stubController) ReportClassifierFailure(string) error {
	f.calls = append(f.calls, "classifier")
	return f.actionErr
}

func (f *stubController) Snapshot(sessionID string) (session.Snapshot, error) {
	snap, ok := f.snapshots[sessionID]
	if !ok {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return snap, nil
}

func (f *stubController) SnapshotByOwner(ownerID string) (session.Snapshot, error) {
	for _, snap := range f.snapshots {
		if snap.OwnerID == ownerID {
			return snap, nil
		}
	}
	return session.Snapshot{}, session.ErrSessionNotFound
}

func newTestServer(ctrl *stubController) *Server {
	deps := Dependencies{
		StartSessionHandler:   command.NewStartSessionHandler(ctrl, nil, testLogger()),
		ControlSessionHandler: command.NewControlSessionHandler(ctrl, testLogger()),
		RecordProgressHandler: command.NewRecordProgressHandler(ctrl, testLogger()),
		ReportSignalHandler:   command.NewReportSignalHandler(ctrl, testLogger()),
		GetSessionHandler:     query.NewGetSessionHandler(ctrl, nil, nil),
		Logger:                testLogger(),
	}
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, deps)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func TestStartSession_Created(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"owner_id":             "owner-1",
		"session_type":         "reading",
		"planned_duration_sec": 3000,
		"break_interval_sec":   1500,
		"break_duration_sec":   300,
		"total_pages":          40,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "sess-1", data["session_id"])
	assert.Equal(t, "running", data["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStartSession_ValidationError(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"session_type": "reading",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSession_ConflictWhenActiveExists(t *testing.T) {
	ctrl := newStubController()
	ctrl.startErr = runtime.ErrActiveSessionExists
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"owner_id":             "owner-1",
		"session_type":         "reading",
		"planned_duration_sec": 3000,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartSession_MalformedBody(t *testing.T) {
	srv := newTestServer(newStubController())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionAction_Pause(t *testing.T) {
	ctrl := newStubController()
	ctrl.snapshots["sess-1"] = session.Snapshot{SessionID: "sess-1", Status: session.StatusPausedManual}
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/actions", map[string]string{"action": "pause"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, ctrl.calls, "pause")
}

func TestSessionAction_UnknownSession(t *testing.T) {
	ctrl := newStubController()
	ctrl.actionErr = runtime.ErrNoActiveSession
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/ghost/actions", map[string]string{"action": "pause"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordProgress_OK(t *testing.T) {
	ctrl := newStubController()
	ctrl.snapshots["sess-1"] = session.Snapshot{SessionID: "sess-1", TotalPages: 40}
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/sessions/sess-1/progress", map[string]int{"pages_read": 12})

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(12), data["pages_read"])
}

func TestReportSignal_Accepted(t *testing.T) {
	ctrl := newStubController()
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/signals", map[string]interface{}{
		"kind":  "visibility",
		"value": true,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, ctrl.calls, "visibility")
}

func TestReportSignal_UnknownKind(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/signals", map[string]interface{}{
		"kind": "telepathy",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_OK(t *testing.T) {
	ctrl := newStubController()
	ctrl.snapshots["sess-1"] = session.Snapshot{SessionID: "sess-1", OwnerID: "owner-1", Status: session.StatusRunning, ElapsedSec: 42}
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(42), data["elapsed_sec"])
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOwnerSession_OK(t *testing.T) {
	ctrl := newStubController()
	ctrl.snapshots["sess-1"] = session.Snapshot{SessionID: "sess-1", OwnerID: "owner-1", Status: session.StatusRunning}
	srv := newTestServer(ctrl)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/learners/owner-1/session", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "sess-1", data["session_id"])
}

func TestHealth_DefaultResponse(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// fakeJobAdmin backs the admin job endpoints in tests.
type fakeJobAdmin struct {
	jobs    []scheduler.JobInfo
	history []scheduler.JobResult
	ran     []string
}

func (f *fakeJobAdmin) ListJobs() []scheduler.JobInfo { return f.jobs }

func (f *fakeJobAdmin) History(limit int) []scheduler.JobResult {
	if limit <= 0 || limit > len(f.history) {
		limit = len(f.history)
	}
	return f.history[len(f.history)-limit:]
}
func (f *fakeJobAdmin) RunNow(_ context.Context, name string) (scheduler.JobResult, error) {
	for _, j := range f.jobs {
		if j.Name == name {
			f.ran = append(f.ran, name)
			return scheduler.JobResult{JobName: name, Success: true, Manual: true}, nil
		}
	}
	return scheduler.JobResult{}, scheduler.ErrJobNotFound
}

func newAdminServer(admin *fakeJobAdmin) *Server {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, Dependencies{JobAdmin: admin, Logger: testLogger()})
}

func TestAdminListJobs_OK(t *testing.T) {
	admin := &fakeJobAdmin{jobs: []scheduler.JobInfo{
		{Name: "prune_live_cache", Schedule: "@every 5m0s"},
		{Name: "daily_digest", Schedule: "0 21 * * *"},
	}}
	srv := newAdminServer(admin)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/admin/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []scheduler.JobInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "prune_live_cache", resp.Data[0].Name)
}

func TestAdminRunJob_OK(t *testing.T) {
	admin := &fakeJobAdmin{jobs: []scheduler.JobInfo{{Name: "streak_watch"}}}
	srv := newAdminServer(admin)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/jobs/streak_watch/run", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"streak_watch"}, admin.ran)

	data := decodeData(t, rec)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, true, data["manual"])
}

func TestAdminRunJob_NotFound(t *testing.T) {
	srv := newAdminServer(&fakeJobAdmin{})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/jobs/nope/run", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminJobHistory_Limited(t *testing.T) {
	admin := &fakeJobAdmin{history: []scheduler.JobResult{
		{JobName: "a", Success: true},
		{JobName: "b", Success: false, Error: "boom"},
		{JobName: "c", Success: true},
	}}
	srv := newAdminServer(admin)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/admin/jobs/history?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []scheduler.JobResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "b", resp.Data[0].JobName)
	assert.Equal(t, "boom", resp.Data[0].Error)
}

func TestAdminEndpoints_NotConfigured(t *testing.T) {
	srv := newTestServer(newStubController())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/admin/jobs", nil)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimit_Blocks(t *testing.T) {
	deps := Dependencies{Logger: testLogger()}
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	srv := NewServer(cfg, deps)

	var last int
	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodGet, "/live", nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
