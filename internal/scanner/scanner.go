// Package scanner coordinates TCP connect scans. It expands a scan request
// into a task queue, runs a bounded worker pool over it, and streams results
// and a single terminal event back to the caller through a Job.
package scanner

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/targets"
	"github.com/anstrom/portsweep/internal/workers"
)

// Config holds scanner-wide limits.
type Config struct {
	// MaxConcurrency caps the workers of any one scan. Zero means no cap.
	MaxConcurrency int
	// ShutdownTimeout bounds how long teardown waits for workers.
	ShutdownTimeout time.Duration
}

// Scanner starts Jobs. It holds no per-scan state, so one Scanner may run any
// number of scans at once.
type Scanner struct {
	config  Config
	prober  scanning.Prober
	metrics *metrics.PrometheusMetrics
	logger  *logging.Logger
}

// New creates a scanner. A nil prober dials with TCPProber and a nil metrics
// uses the global instance.
func New(config Config, prober scanning.Prober, m *metrics.PrometheusMetrics) *Scanner {
	if prober == nil {
		prober = scanning.NewTCPProber()
	}
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	return &Scanner{
		config:  config,
		prober:  prober,
		metrics: m,
		logger:  logging.Default().WithComponent("scanner"),
	}
}

// Start begins a scan of every host x port pair. It returns an
// InvalidHostSpec or InvalidPortSpec error, and no job, when either set is
// empty. Cancelling ctx stops the scan.
func (s *Scanner) Start(ctx context.Context, hosts []netip.Addr, ports []uint16,
	opts scanning.Options) (*Job, error) {
	return s.start(ctx, uuid.New().String(), hosts, ports, opts)
}

func (s *Scanner) start(ctx context.Context, id string, hosts []netip.Addr, ports []uint16,
	opts scanning.Options) (*Job, error) {
	if len(hosts) == 0 {
		s.metrics.ScanRejected()
		return nil, errors.ErrInvalidHostSpec
	}
	if len(ports) == 0 {
		s.metrics.ScanRejected()
		return nil, errors.ErrInvalidPortSpec
	}
	if opts.Concurrency < 0 {
		s.metrics.ScanRejected()
		return nil, errors.NewScanError(errors.CodeValidation, "concurrency must not be negative")
	}

	timeout := opts.EffectiveTimeout()
	queue := workers.NewTaskQueue(hosts, ports, timeout)
	total := queue.Total()
	concurrency := s.effectiveConcurrency(opts, total)

	pool := workers.New(ctx, workers.Config{
		Size:            concurrency,
		ShutdownTimeout: s.config.ShutdownTimeout,
	}, queue, s.prober, s.metrics)

	job := &Job{
		id:          id,
		hostCount:   len(hosts),
		portCount:   len(ports),
		total:       total,
		concurrency: concurrency,
		options:     opts,
		pool:        pool,
		metrics:     s.metrics,
		logger:      s.logger.WithScanID(id),
		events:      make(chan Event),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateRunning,
		results:     make([]scanning.Result, 0, min(total, maxPreallocatedResults)),
		startedAt:   time.Now(),
	}

	job.logger.Info("Scan started",
		"hosts", len(hosts),
		"ports", len(ports),
		"total", total,
		"concurrency", concurrency,
		"timeout", timeout)
	s.metrics.ScanStarted(total)

	pool.Start()
	go job.run(ctx)

	return job, nil
}

// maxPreallocatedResults bounds the up-front allocation for huge scans.
const maxPreallocatedResults = 4096

// StartSpecs expands hostSpec and portSpec and starts a scan over them.
func (s *Scanner) StartSpecs(ctx context.Context, hostSpec, portSpec string,
	opts scanning.Options) (*Job, error) {
	return s.startSpecs(ctx, uuid.New().String(), hostSpec, portSpec, opts)
}

func (s *Scanner) startSpecs(ctx context.Context, id, hostSpec, portSpec string,
	opts scanning.Options) (*Job, error) {
	hosts, err := targets.ParseHosts(hostSpec)
	if err == nil {
		err = targets.ValidateHosts(hostSpec, hosts)
	}
	if err != nil {
		s.metrics.ScanRejected()
		return nil, err
	}
	ports := targets.ParsePorts(portSpec)
	if err := targets.ValidatePorts(portSpec, ports); err != nil {
		s.metrics.ScanRejected()
		return nil, err
	}
	return s.start(ctx, id, hosts, ports, opts)
}

// effectiveConcurrency is min(requested, total), further capped by the
// scanner's MaxConcurrency.
func (s *Scanner) effectiveConcurrency(opts scanning.Options, total int) int {
	n := min(opts.RequestedConcurrency(), total)
	if s.config.MaxConcurrency > 0 {
		n = min(n, s.config.MaxConcurrency)
	}
	return max(n, 1)
}

// Start begins a scan using TCPProber and the global metrics.
func Start(ctx context.Context, hosts []netip.Addr, ports []uint16, opts scanning.Options) (*Job, error) {
	return New(Config{}, nil, nil).Start(ctx, hosts, ports, opts)
}

// StartSpecs expands specs and begins a scan using TCPProber and the global
// metrics.
func StartSpecs(ctx context.Context, hostSpec, portSpec string, opts scanning.Options) (*Job, error) {
	return New(Config{}, nil, nil).StartSpecs(ctx, hostSpec, portSpec, opts)
}
