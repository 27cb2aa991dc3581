package scanner

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/scanning"
)

// DefaultRetention is how long a finished job stays queryable.
const DefaultRetention = 10 * time.Minute

// ManagerConfig controls a Manager.
type ManagerConfig struct {
	// MaxConcurrentScans bounds running scans; further starts are rejected.
	MaxConcurrentScans int
	// Retention is how long finished jobs remain available to Get and List.
	Retention time.Duration
}

// Sink receives every event of a managed job on the job's drain goroutine.
type Sink func(job *Job, event Event)

// Manager tracks the scans started on behalf of API clients. Each request
// gets its own Job; the manager only indexes them by ID and drains their
// events so a slow or absent client never stalls a scan.
type Manager struct {
	scanner   *Scanner
	slots     *ScanSlots
	retention time.Duration
	logger    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	jobs   map[string]*Job
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// NewManager creates a manager that starts scans with s.
func NewManager(s *Scanner, config ManagerConfig) *Manager {
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		scanner:   s,
		slots:     NewScanSlots(config.MaxConcurrentScans),
		retention: config.Retention,
		logger:    logging.Default().WithComponent("scan_manager"),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
		timers:    make(map[string]*time.Timer),
	}
}

// Start expands the specs and starts a managed scan. The scan is bound to
// the manager's lifetime, not to the caller's request. sink may be nil.
func (m *Manager) Start(hostSpec, portSpec string, opts scanning.Options, sink Sink) (*Job, error) {
	id := uuid.New().String()
	if err := m.slots.TryAcquire(id); err != nil {
		m.scanner.metrics.ScanRejected()
		return nil, err
	}

	job, err := m.scanner.startSpecs(m.ctx, id, hostSpec, portSpec, opts)
	if err != nil {
		m.slots.Release(id)
		return nil, err
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.drain(job, sink)

	return job, nil
}

// drain consumes the job's events, forwarding them to sink. Results that
// arrive after Stop was requested are dropped so subscribers never see a
// result following a stop.
func (m *Manager) drain(job *Job, sink Sink) {
	defer m.wg.Done()

	for event := range job.Events() {
		if sink == nil {
			continue
		}
		if event.Type == EventResult && job.stopRequested() {
			continue
		}
		sink(job, event)
	}

	m.slots.Release(job.ID())
	m.scheduleEviction(job.ID())
}

func (m *Manager) scheduleEviction(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return
	}
	m.timers[id] = time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		delete(m.jobs, id)
		delete(m.timers, id)
		m.mu.Unlock()
		m.logger.Debug("Evicted finished scan", "scan_id", id)
	})
}

// Get returns the job with the given ID.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.ErrScanNotFound
	}
	return job, nil
}

// Stop stops the job with the given ID. Stopping a finished job is a no-op.
func (m *Manager) Stop(id string) (*Job, error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	job.Stop()
	return job, nil
}

// List returns summaries of all known jobs, oldest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	summaries := make([]Summary, 0, len(m.jobs))
	for _, job := range m.jobs {
		summaries = append(summaries, job.Summary())
	}
	m.mu.RUnlock()

	slices.SortFunc(summaries, func(a, b Summary) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return summaries
}

// Slots exposes the concurrency limiter for health reporting.
func (m *Manager) Slots() *ScanSlots {
	return m.slots
}

// Close stops every running job and waits for their event streams to drain.
func (m *Manager) Close() {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	for _, job := range jobs {
		job.Stop()
	}
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	m.slots.Close()
}
