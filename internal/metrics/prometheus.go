// Package metrics provides Prometheus-based metrics collection for portsweep.
// A single PrometheusMetrics instance owns its own registry so tests can build
// isolated instances while the application uses the global one.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all portsweep metrics
	namespace = "portsweep"

	// Subsystems
	subsystemScan      = "scan"
	subsystemProbe     = "probe"
	subsystemWorker    = "worker"
	subsystemAPI       = "api"
	subsystemWebSocket = "websocket"
)

// Label values shared by the scan pipeline.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeRejected  = "rejected"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	activeScans  prometheus.Gauge
	tasksQueued  prometheus.Counter

	// Probe metrics
	probesTotal    *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	probesInFlight prometheus.Gauge

	// Worker metrics
	workerFailures prometheus.Counter
	workersActive  prometheus.Gauge

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	wsClients    prometheus.Gauge

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initProbeMetrics()
	pm.initAPIMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by terminal outcome",
		},
		[]string{"outcome"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"outcome"},
	)

	pm.activeScans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemScan,
		Name:      "active",
		Help:      "Number of scans currently running",
	})

	pm.tasksQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemScan,
		Name:      "tasks_queued_total",
		Help:      "Total number of host:port tasks enqueued",
	})
}

func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of probes by resolved status",
		},
		[]string{"status"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual connect probes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	pm.probesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemProbe,
		Name:      "in_flight",
		Help:      "Number of connect probes currently waiting on the network",
	})

	pm.workerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemWorker,
		Name:      "failures_total",
		Help:      "Total number of tasks resolved as error after a worker fault",
	})

	pm.workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemWorker,
		Name:      "active",
		Help:      "Number of worker goroutines currently alive",
	})
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	pm.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemWebSocket,
		Name:      "clients",
		Help:      "Number of connected WebSocket clients",
	})
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.activeScans,
		pm.tasksQueued,
		pm.probesTotal,
		pm.probeDuration,
		pm.probesInFlight,
		pm.workerFailures,
		pm.workersActive,
		pm.httpRequests,
		pm.httpDuration,
		pm.wsClients,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing this instance's registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Scan Metrics Methods

// ScanStarted records a scan entering the running state with total tasks queued.
func (pm *PrometheusMetrics) ScanStarted(tasks int) {
	pm.activeScans.Inc()
	pm.tasksQueued.Add(float64(tasks))
}

// ScanFinished records the terminal outcome of a scan that was started.
func (pm *PrometheusMetrics) ScanFinished(outcome string, duration time.Duration) {
	pm.activeScans.Dec()
	pm.scansTotal.WithLabelValues(outcome).Inc()
	pm.scanDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ScanRejected counts a scan request that never started.
func (pm *PrometheusMetrics) ScanRejected() {
	pm.scansTotal.WithLabelValues(OutcomeRejected).Inc()
}

// Probe Metrics Methods

// ProbeStarted marks a probe as in flight.
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.probesInFlight.Inc()
}

// ProbeFinished records a resolved probe.
func (pm *PrometheusMetrics) ProbeFinished(status string, duration time.Duration) {
	pm.probesInFlight.Dec()
	pm.probesTotal.WithLabelValues(status).Inc()
	pm.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementWorkerFailures counts a task resolved as error after a worker fault.
func (pm *PrometheusMetrics) IncrementWorkerFailures() {
	pm.workerFailures.Inc()
}

// WorkerStarted and WorkerStopped track live worker goroutines.
func (pm *PrometheusMetrics) WorkerStarted() { pm.workersActive.Inc() }

// WorkerStopped decrements the live worker gauge.
func (pm *PrometheusMetrics) WorkerStopped() { pm.workersActive.Dec() }

// API Metrics Methods

// RecordHTTPRequest records a completed HTTP request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetWebSocketClients sets the number of connected WebSocket clients.
func (pm *PrometheusMetrics) SetWebSocketClients(count int) {
	pm.wsClients.Set(float64(count))
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// Global instance for easy access
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
