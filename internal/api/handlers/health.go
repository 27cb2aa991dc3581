// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements health check and version endpoints.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/scanner"
)

// Status constants.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// HealthHandler handles health check and version endpoints.
type HealthHandler struct {
	manager   *scanner.Manager
	build     BuildInfo
	logger    *logging.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(manager *scanner.Manager, build BuildInfo, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		manager:   manager,
		build:     build,
		logger:    logger.WithFields("handler", "health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     string    `json:"uptime"`
	Scans      ScanLoad  `json:"scans"`
	Goroutines int       `json:"goroutines"`
}

// ScanLoad reports scan slot usage.
type ScanLoad struct {
	Active      int      `json:"active"`
	Available   int      `json:"available"`
	LongRunning []string `json:"long_running,omitempty"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	BuildInfo
	GoVersion string    `json:"go_version"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /api/v1/health.
//
// @Summary Health check
// @Description Returns service health and scan slot usage; degraded when no scan slot is free
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	slots := h.manager.Slots()
	load := ScanLoad{
		Active:      slots.Active(),
		Available:   slots.Available(),
		LongRunning: slots.LongRunning(),
	}

	status := StatusHealthy
	if load.Available == 0 || len(load.LongRunning) > 0 {
		status = StatusDegraded
		h.logger.Debug("Health degraded", "active", load.Active, "long_running", len(load.LongRunning))
	}

	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Scans:      load,
		Goroutines: runtime.NumGoroutine(),
	})
}

// Version handles GET /api/v1/version.
//
// @Summary Version information
// @Description Returns version and build info
// @Tags System
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /version [get]
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		BuildInfo: h.build,
		GoVersion: runtime.Version(),
		Service:   "portsweep",
		Timestamp: time.Now().UTC(),
	})
}
