package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickframe/pickframe/internal/auth"
	"github.com/pickframe/pickframe/internal/engine"
	"github.com/pickframe/pickframe/internal/picker"
)

type fakeSessions struct {
	createFn func(pickingConfig json.RawMessage, requestID string) (*engine.CreateResult, error)
	statusFn func(sessionID string) (*engine.Snapshot, bool)
	deleteFn func(sessionID string) error
}

func (f *fakeSessions) CreateSession(_ context.Context, pickingConfig json.RawMessage, requestID string) (*engine.CreateResult, error) {
	return f.createFn(pickingConfig, requestID)
}

func (f *fakeSessions) GetStatus(sessionID string) (*engine.Snapshot, bool) {
	return f.statusFn(sessionID)
}

func (f *fakeSessions) DeleteSession(_ context.Context, sessionID string) error {
	return f.deleteFn(sessionID)
}

type fakeSlideshowSvc struct {
	starts int
}

func (f *fakeSlideshowSvc) Start() { f.starts++ }

type fakeViewerSvc struct {
	stops int
	err   error
}

func (f *fakeViewerSvc) Stop() error {
	f.stops++
	return f.err
}

type fakeDisplaySvc struct {
	calls []bool
	err   error
}

func (f *fakeDisplaySvc) Power(on bool) error {
	f.calls = append(f.calls, on)
	return f.err
}

type testHarness struct {
	srv       *Server
	sessions  *fakeSessions
	slideshow *fakeSlideshowSvc
	viewer    *fakeViewerSvc
	display   *fakeDisplaySvc
}

func newHarness() *testHarness {
	h := &testHarness{
		sessions:  &fakeSessions{},
		slideshow: &fakeSlideshowSvc{},
		viewer:    &fakeViewerSvc{},
		display:   &fakeDisplaySvc{},
	}

	h.srv = NewServer(h.sessions, h.slideshow, h.viewer, h.display, nil)

	return h
}

func (h *testHarness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	h.srv.echo.ServeHTTP(rec, req)

	return rec
}

func TestCreateSession(t *testing.T) {
	h := newHarness()

	var gotConfig json.RawMessage
	var gotRequestID string

	h.sessions.createFn = func(pickingConfig json.RawMessage, requestID string) (*engine.CreateResult, error) {
		gotConfig = pickingConfig
		gotRequestID = requestID

		return &engine.CreateResult{
			Session:             &picker.SessionPayload{ID: "s1", PickerURI: "https://photos.example/picker/s1"},
			State:               engine.StatePending,
			RequestID:           requestID,
			PollingDeadline:     time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
			PollIntervalSeconds: 5,
		}, nil
	}

	rec := h.do(http.MethodPost, "/api/sessions",
		`{"pickingConfig":{"maxItemCount":"10"},"requestId":"req-7"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"maxItemCount":"10"}`, string(gotConfig))
	assert.Equal(t, "req-7", gotRequestID)

	var result engine.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "s1", result.Session.ID)
	assert.Equal(t, engine.StatePending, result.State)
}

func TestCreateSession_EmptyBody(t *testing.T) {
	h := newHarness()

	h.sessions.createFn = func(pickingConfig json.RawMessage, requestID string) (*engine.CreateResult, error) {
		assert.Nil(t, pickingConfig)
		assert.Empty(t, requestID)

		return &engine.CreateResult{
			Session: &picker.SessionPayload{ID: "s1"},
			State:   engine.StatePending,
		}, nil
	}

	rec := h.do(http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateSession_RemoteAPIErrorIsBadGateway(t *testing.T) {
	h := newHarness()

	h.sessions.createFn = func(json.RawMessage, string) (*engine.CreateResult, error) {
		return nil, &picker.APIError{
			StatusCode: 429,
			Status:     "RESOURCE_EXHAUSTED",
			Message:    "quota exceeded",
			Err:        picker.ErrThrottled,
		}
	}

	rec := h.do(http.MethodPost, "/api/sessions", `{}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "quota exceeded", body.Message)
	assert.Equal(t, "RESOURCE_EXHAUSTED", body.Status)
	assert.Equal(t, 429, body.StatusCode)
}

func TestCreateSession_CredentialProblemIsServiceUnavailable(t *testing.T) {
	h := newHarness()

	h.sessions.createFn = func(json.RawMessage, string) (*engine.CreateResult, error) {
		return nil, auth.ErrCredentialConfig
	}

	rec := h.do(http.MethodPost, "/api/sessions", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateSession_TransportErrorIsInternal(t *testing.T) {
	h := newHarness()

	h.sessions.createFn = func(json.RawMessage, string) (*engine.CreateResult, error) {
		return nil, errors.New("connection refused")
	}

	rec := h.do(http.MethodPost, "/api/sessions", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetSession(t *testing.T) {
	h := newHarness()

	h.sessions.statusFn = func(sessionID string) (*engine.Snapshot, bool) {
		require.Equal(t, "s1", sessionID)

		return &engine.Snapshot{
			SessionID:       "s1",
			State:           engine.StateComplete,
			Session:         &picker.SessionPayload{ID: "s1", MediaItemsSet: true},
			MediaItemsCount: 3,
		}, true
	}

	rec := h.do(http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, engine.StateComplete, snap.State)
	assert.Equal(t, 3, snap.MediaItemsCount)
}

func TestGetSession_NotFound(t *testing.T) {
	h := newHarness()

	h.sessions.statusFn = func(string) (*engine.Snapshot, bool) {
		return nil, false
	}

	rec := h.do(http.MethodGet, "/api/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session not found")
}

func TestDeleteSession(t *testing.T) {
	h := newHarness()

	h.sessions.deleteFn = func(sessionID string) error {
		require.Equal(t, "s1", sessionID)
		return nil
	}

	rec := h.do(http.MethodDelete, "/api/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteSession_RemoteFailure(t *testing.T) {
	h := newHarness()

	h.sessions.deleteFn = func(string) error {
		return &picker.APIError{StatusCode: 500, Status: "INTERNAL", Message: "boom", Err: picker.ErrServerError}
	}

	rec := h.do(http.MethodDelete, "/api/sessions/s1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDisplayToggle(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodGet, "/display?cmd=on", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Display turned on", rec.Body.String())

	rec = h.do(http.MethodGet, "/display?cmd=off", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Display turned off", rec.Body.String())

	assert.Equal(t, []bool{true, false}, h.display.calls)
}

func TestDisplayToggle_InvalidCommand(t *testing.T) {
	h := newHarness()

	for _, target := range []string{"/display", "/display?cmd=blink"} {
		rec := h.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid command", rec.Body.String())
	}

	assert.Empty(t, h.display.calls)
}

func TestDisplayToggle_PowerFailure(t *testing.T) {
	h := newHarness()
	h.display.err = errors.New("xset: unable to open display")

	rec := h.do(http.MethodGet, "/display?cmd=on", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScreensaverToggle(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodGet, "/screensaver?cmd=on", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Screensaver turned on", rec.Body.String())
	assert.Equal(t, 1, h.slideshow.starts)

	rec = h.do(http.MethodGet, "/screensaver?cmd=off", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Screensaver turned off", rec.Body.String())
	assert.Equal(t, 1, h.viewer.stops)
}

func TestScreensaverToggle_InvalidCommand(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodGet, "/screensaver?cmd=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid command", rec.Body.String())
	assert.Equal(t, 0, h.slideshow.starts)
	assert.Equal(t, 0, h.viewer.stops)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness()

	for _, target := range []string{"/health/live", "/health/ready"} {
		rec := h.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pickframe_")
}
