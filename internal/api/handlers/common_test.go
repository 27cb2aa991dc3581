package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/scanning/mocks"
)

var testDefaults = ScanDefaults{
	Ports:   "22,80",
	Speed:   scanning.SpeedNormal,
	Timeout: 200 * time.Millisecond,
}

func createTestLogger() *logging.Logger {
	return logging.NewWithWriter(logging.Config{Level: logging.LevelDebug, Format: logging.FormatText}, &bytes.Buffer{})
}

// openProber resolves every task as open.
func openProber(ctrl *gomock.Controller) *mocks.MockProber {
	prober := mocks.NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, task scanning.Task) scanning.Result {
			return scanning.NewResult(task, scanning.StatusOpen)
		}).AnyTimes()
	return prober
}

// portProber reports only openPort as open and every other port as closed.
func portProber(ctrl *gomock.Controller, openPort uint16) *mocks.MockProber {
	prober := mocks.NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, task scanning.Task) scanning.Result {
			if task.Port == openPort {
				return scanning.NewResult(task, scanning.StatusOpen)
			}
			return scanning.NewResult(task, scanning.StatusClosed)
		}).AnyTimes()
	return prober
}

// blockingProber holds every probe until its scan is stopped.
func blockingProber(ctrl *gomock.Controller) *mocks.MockProber {
	prober := mocks.NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, task scanning.Task) scanning.Result {
			<-ctx.Done()
			return scanning.NewResult(task, scanning.StatusFiltered)
		}).AnyTimes()
	return prober
}

// newTestManager builds a manager that is closed before the mock controller
// verifies its expectations.
func newTestManager(t *testing.T, prober scanning.Prober, maxScans int) *scanner.Manager {
	t.Helper()
	s := scanner.New(scanner.Config{}, prober, metrics.NewPrometheusMetrics())
	m := scanner.NewManager(s, scanner.ManagerConfig{MaxConcurrentScans: maxScans})
	t.Cleanup(m.Close)
	return m
}

func newTestRouter(scans *ScanHandler, health *HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID())
	api := router.PathPrefix("/api/v1").Subrouter()
	if health != nil {
		api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
		api.HandleFunc("/version", health.Version).Methods(http.MethodGet)
	}
	if scans != nil {
		api.HandleFunc("/scans", scans.ListScans).Methods(http.MethodGet)
		api.HandleFunc("/scans", scans.CreateScan).Methods(http.MethodPost)
		api.HandleFunc("/scans/{id}", scans.GetScan).Methods(http.MethodGet)
		api.HandleFunc("/scans/{id}", scans.StopScan).Methods(http.MethodDelete)
	}
	return router
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", errors.NewScanError(errors.CodeValidation, "bad"), http.StatusBadRequest},
		{"host spec", errors.ErrInvalidHostSpec, http.StatusBadRequest},
		{"port spec", errors.ErrInvalidPortSpec, http.StatusBadRequest},
		{"host limit", errors.NewScanError(errors.CodeTooManyHosts, "too many"), http.StatusBadRequest},
		{"not found", errors.ErrScanNotFound, http.StatusNotFound},
		{"capacity", scanner.ErrNoScanSlots, http.StatusTooManyRequests},
		{"unauthorized", errors.NewScanError(errors.CodeUnauthorized, "no"), http.StatusUnauthorized},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
	rec := httptest.NewRecorder()

	writeError(rec, req, http.StatusNotFound, errors.ErrScanNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Not Found", resp.Error)
	assert.Equal(t, string(errors.CodeScanNotFound), resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Contains(t, resp.Message, "scan not found")
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"hosts":"10.0.0.1","ports":"80","speed":"fast"}`, ""},
		{"empty body", ``, "request body is empty"},
		{"malformed", `{"hosts":`, "invalid JSON"},
		{"unknown field", `{"hosts":"10.0.0.1","bogus":1}`, "invalid JSON"},
		{"missing hosts", `{"ports":"80"}`, "hosts is required"},
		{"bad speed", `{"hosts":"10.0.0.1","speed":"ludicrous"}`, "speed must be one of"},
		{"negative concurrency", `{"hosts":"10.0.0.1","concurrency":-1}`, "concurrency must be at least 0"},
		{"huge timeout", `{"hosts":"10.0.0.1","timeout_ms":999999999}`, "timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest ScanRequest
			err := parseJSON(req, &dest)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation))
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.wantErr))
		})
	}
}

func TestExtractIDFromPath(t *testing.T) {
	const id = "0b8c6d5e-3f1a-4b2c-9d7e-6f5a4b3c2d1e"

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id})
	got, err := extractIDFromPath(req)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	_, err = extractIDFromPath(req)
	assert.Error(t, err)

	_, err = extractIDFromPath(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}
