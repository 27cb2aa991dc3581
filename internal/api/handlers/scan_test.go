package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
)

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitForState(t *testing.T, m *scanner.Manager, id string, state scanner.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := m.Get(id)
		return err == nil && job.State() == state
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScanHandler_CreateScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, openProber(ctrl), 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scans",
		`{"hosts":"10.0.0.1-10.0.0.3","ports":"80,443","speed":"fast"}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp ScanCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, scanner.StateRunning, resp.Status)
	assert.Equal(t, 6, resp.Total)
	assert.Equal(t, "/api/v1/scans/"+resp.ID, rec.Header().Get("Location"))

	waitForState(t, m, resp.ID, scanner.StateCompleted)
}

func TestScanHandler_CreateScanDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, openProber(ctrl), 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"10.0.0.1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp ScanCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total, "default ports 22,80")

	job, err := m.Get(resp.ID)
	require.NoError(t, err)
	summary := job.Summary()
	assert.Equal(t, testDefaults.Timeout.String(), summary.Timeout)
	assert.Equal(t, 2, summary.Concurrency, "normal tier capped by total")
}

func TestScanHandler_CreateScanRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, openProber(ctrl), 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	tests := []struct {
		name     string
		body     string
		expected int
		code     string
	}{
		{"no hosts expand", `{"hosts":"not-an-ip","ports":"80"}`, http.StatusBadRequest, "INVALID_HOST_SPEC"},
		{"reversed range", `{"hosts":"10.0.0.9-10.0.0.1","ports":"80"}`, http.StatusBadRequest, "INVALID_HOST_SPEC"},
		{"no ports expand", `{"hosts":"10.0.0.1","ports":"0,70000"}`, http.StatusBadRequest, "INVALID_PORT_SPEC"},
		{"host limit exceeded", `{"hosts":"10.0.0.0/8","ports":"80"}`, http.StatusBadRequest, "TOO_MANY_HOSTS"},
		{"missing hosts", `{"ports":"80"}`, http.StatusBadRequest, "VALIDATION"},
		{"bad speed", `{"hosts":"10.0.0.1","speed":"warp"}`, http.StatusBadRequest, "VALIDATION"},
		{"malformed json", `{"hosts":`, http.StatusBadRequest, "VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/v1/scans", tt.body)
			assert.Equal(t, tt.expected, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	assert.Empty(t, m.List(), "rejected requests must not register scans")
}

func TestScanHandler_CreateScanTooManyScans(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, blockingProber(ctrl), 1)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	first := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"10.0.0.1","ports":"80"}`)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"10.0.0.2","ports":"80"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestScanHandler_GetScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := portProber(ctrl, 80)
	m := newTestManager(t, prober, 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	created := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"10.0.0.1","ports":"22,80,443"}`)
	require.Equal(t, http.StatusAccepted, created.Code)
	var createdResp ScanCreatedResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createdResp))
	waitForState(t, m, createdResp.ID, scanner.StateCompleted)

	t.Run("all results", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/scans/"+createdResp.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ScanResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, createdResp.ID, resp.ID)
		assert.Equal(t, scanner.StateCompleted, resp.State)
		assert.Equal(t, scanner.Progress{Total: 3, Completed: 3, Open: 1}, resp.Progress)
		assert.InDelta(t, 100.0, resp.Percent, 0.001)
		assert.Len(t, resp.Results, 3)
		assert.NotNil(t, resp.FinishedAt)
	})

	t.Run("open only", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/scans/"+createdResp.ID+"?open_only=true", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ScanResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, uint16(80), resp.Results[0].Port)
		assert.Equal(t, scanning.StatusOpen, resp.Results[0].Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/scans/"+uuid.New().String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/scans/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestScanHandler_ListScans(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, openProber(ctrl), 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/scans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty ScanListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Equal(t, 0, empty.Count)

	for _, host := range []string{"10.0.0.1", "10.0.0.2"} {
		created := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"`+host+`","ports":"80"}`)
		require.Equal(t, http.StatusAccepted, created.Code)
		var resp ScanCreatedResponse
		require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))
		waitForState(t, m, resp.ID, scanner.StateCompleted)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/scans", "")
	var list ScanListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Scans, 2)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/scans?status=running", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
}

func TestScanHandler_StopScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newTestManager(t, blockingProber(ctrl), 4)
	router := newTestRouter(NewScanHandler(m, testDefaults, createTestLogger()), nil)

	created := doRequest(t, router, http.MethodPost, "/api/v1/scans", `{"hosts":"10.0.0.0/30","ports":"1-100"}`)
	require.Equal(t, http.StatusAccepted, created.Code)
	var resp ScanCreatedResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/scans/"+resp.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary scanner.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, scanner.StateStopped, summary.State)
	assert.Less(t, summary.Progress.Completed, summary.Progress.Total)

	// Idempotent.
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/scans/"+resp.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/scans/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
