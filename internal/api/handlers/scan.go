// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements the scan endpoints: start, list, inspect and stop.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
)

// ScanDefaults fill in request fields the client left out.
type ScanDefaults struct {
	Ports   string
	Speed   scanning.Speed
	Timeout time.Duration
}

// ScanHandler handles scan-related API endpoints.
type ScanHandler struct {
	manager  *scanner.Manager
	defaults ScanDefaults
	logger   *logging.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(manager *scanner.Manager, defaults ScanDefaults, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		manager:  manager,
		defaults: defaults,
		logger:   logger.WithFields("handler", "scan"),
	}
}

// ScanRequest represents a scan creation request.
type ScanRequest struct {
	Hosts       string `json:"hosts" validate:"required,max=4096"`
	Ports       string `json:"ports,omitempty" validate:"max=4096"`
	Speed       string `json:"speed,omitempty" validate:"omitempty,oneof=fast normal slow"`
	Concurrency int    `json:"concurrency,omitempty" validate:"gte=0,lte=10000"`
	TimeoutMS   int    `json:"timeout_ms,omitempty" validate:"gte=0,lte=600000"`
}

// ScanCreatedResponse is returned when a scan is accepted.
type ScanCreatedResponse struct {
	ID     string        `json:"id"`
	Status scanner.State `json:"status"`
	Total  int           `json:"total"`
}

// ScanResponse describes one scan and the results recorded so far.
type ScanResponse struct {
	scanner.Summary
	Percent float64           `json:"percent"`
	Results []scanning.Result `json:"results"`
}

// ScanListResponse lists known scans.
type ScanListResponse struct {
	Scans []scanner.Summary `json:"scans"`
	Count int               `json:"count"`
}

// options converts a request into scan options, applying defaults.
func (h *ScanHandler) options(req *ScanRequest) scanning.Options {
	opts := scanning.Options{
		Concurrency: req.Concurrency,
		Speed:       h.defaults.Speed,
		Timeout:     h.defaults.Timeout,
	}
	if speed, ok := scanning.ParseSpeed(req.Speed); ok && req.Speed != "" {
		opts.Speed = speed
	}
	if req.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	return opts
}

// CreateScan handles POST /api/v1/scans - start a new scan.
//
// @Summary Start a scan
// @Description Expands the host and port specifications and starts a TCP connect scan
// @Tags Scans
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param scan body ScanRequest true "Scan request"
// @Success 202 {object} ScanCreatedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /scans [post]
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestIDFromContext(r)

	var req ScanRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ports := req.Ports
	if strings.TrimSpace(ports) == "" {
		ports = h.defaults.Ports
	}

	job, err := h.manager.Start(req.Hosts, ports, h.options(&req), nil)
	if err != nil {
		h.logger.Warn("Scan rejected", "request_id", requestID, "error", err)
		writeError(w, r, statusForError(err), err)
		return
	}

	h.logger.Info("Scan accepted",
		"request_id", requestID,
		"scan_id", job.ID(),
		"total", job.Total(),
		"concurrency", job.Concurrency())

	w.Header().Set("Location", "/api/v1/scans/"+job.ID())
	writeJSON(w, r, http.StatusAccepted, ScanCreatedResponse{
		ID:     job.ID(),
		Status: scanner.StateRunning,
		Total:  job.Total(),
	})
}

// ListScans handles GET /api/v1/scans - list running and retained scans.
//
// @Summary List scans
// @Description Lists running scans and finished scans still within retention
// @Tags Scans
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} ScanListResponse
// @Router /scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	scans := h.manager.List()
	if state := r.URL.Query().Get("status"); state != "" {
		filtered := scans[:0]
		for _, s := range scans {
			if string(s.State) == state {
				filtered = append(filtered, s)
			}
		}
		scans = filtered
	}

	writeJSON(w, r, http.StatusOK, ScanListResponse{Scans: scans, Count: len(scans)})
}

// GetScan handles GET /api/v1/scans/{id} - status, progress and results.
//
// @Summary Get a scan
// @Description Returns status, progress and results; open_only=true limits results to open ports
// @Tags Scans
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Scan ID"
// @Param open_only query bool false "Only include open ports"
// @Success 200 {object} ScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := h.manager.Get(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	summary := job.Summary()
	results := job.Results()
	if openOnly, _ := strconv.ParseBool(r.URL.Query().Get("open_only")); openOnly {
		open := make([]scanning.Result, 0, summary.Progress.Open)
		for _, result := range results {
			if result.IsOpen() {
				open = append(open, result)
			}
		}
		results = open
	}

	writeJSON(w, r, http.StatusOK, ScanResponse{
		Summary: summary,
		Percent: summary.Progress.Percent(),
		Results: results,
	})
}

// StopScan handles DELETE /api/v1/scans/{id} - stop a scan.
//
// @Summary Stop a scan
// @Description Stops a running scan; stopping a finished scan is a no-op
// @Tags Scans
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} scanner.Summary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [delete]
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := h.manager.Stop(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	h.logger.Info("Scan stop requested",
		"request_id", getRequestIDFromContext(r),
		"scan_id", id,
		"state", job.State())

	writeJSON(w, r, http.StatusOK, job.Summary())
}
