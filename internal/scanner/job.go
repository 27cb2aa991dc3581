package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/workers"
)

// Job is one running scan. A single coordinator goroutine owns the completed
// count and the result set; workers only hand results to it.
//
// Events must be drained until it is closed. The channel is unbuffered, so a
// consumer that calls Stop from its receive loop never sees a result after
// Stop returns.
type Job struct {
	id          string
	hostCount   int
	portCount   int
	total       int
	concurrency int
	options     scanning.Options

	pool    *workers.Pool
	metrics *metrics.PrometheusMetrics
	logger  *logging.Logger

	events   chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu         sync.RWMutex
	state      State
	completed  int
	open       int
	results    []scanning.Result
	startedAt  time.Time
	finishedAt time.Time
}

func (j *Job) run(ctx context.Context) {
	defer close(j.events)

	results := j.pool.Results()
	for {
		if j.stopRequested() || ctx.Err() != nil {
			j.finish(StateStopped)
			return
		}

		select {
		case <-j.stopCh:
			j.finish(StateStopped)
			return
		case <-ctx.Done():
			j.finish(StateStopped)
			return
		case result, ok := <-results:
			if !ok {
				// Workers only exit early when cancelled.
				j.logger.Warn("Worker pool closed before all tasks resolved",
					"completed", j.Progress().Completed, "total", j.total)
				j.finish(StateStopped)
				return
			}
			if !j.handle(ctx, result) {
				j.finish(StateStopped)
				return
			}
			if j.Progress().Completed == j.total {
				j.finish(StateCompleted)
				return
			}
		}
	}
}

// handle records one result and emits it. It returns false when the scan was
// stopped before the result could be delivered.
func (j *Job) handle(ctx context.Context, result scanning.Result) bool {
	if j.stopRequested() || ctx.Err() != nil {
		return false
	}

	j.mu.Lock()
	j.completed++
	if result.IsOpen() {
		j.open++
	}
	j.results = append(j.results, result)
	j.mu.Unlock()

	select {
	case j.events <- Event{Type: EventResult, Result: &result, Time: time.Now()}:
		return true
	case <-j.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (j *Job) stopRequested() bool {
	select {
	case <-j.stopCh:
		return true
	default:
		return false
	}
}

// finish settles the job, tears down the pool and emits the terminal event.
func (j *Job) finish(state State) {
	j.mu.Lock()
	j.state = state
	j.finishedAt = time.Now()
	duration := j.finishedAt.Sub(j.startedAt)
	progress := Progress{Total: j.total, Completed: j.completed, Open: j.open}
	var all []scanning.Result
	if state == StateCompleted {
		all = make([]scanning.Result, len(j.results))
		copy(all, j.results)
	}
	j.mu.Unlock()

	close(j.done)

	if err := j.pool.Shutdown(); err != nil {
		j.logger.WithError(err).Warn("Worker pool did not stop cleanly")
	}

	outcome := metrics.OutcomeCompleted
	event := Event{Type: EventComplete, Results: all, Time: time.Now()}
	if state == StateStopped {
		outcome = metrics.OutcomeStopped
		event = Event{Type: EventStopped, Time: time.Now()}
	}
	j.metrics.ScanFinished(outcome, duration)

	j.logger.Info("Scan finished",
		"state", state,
		"completed", progress.Completed,
		"total", progress.Total,
		"open", progress.Open,
		"duration", duration)

	j.events <- event
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Events returns the job's event stream: zero or more result events followed
// by exactly one terminal event, after which the channel is closed.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Done is closed once the job has reached a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Stop ends the scan early. Pending tasks are discarded and in-flight probes
// abandoned. It returns once the terminal state is decided; calling it again,
// or after completion, does nothing.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
	<-j.done
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (j *Job) Wait(ctx context.Context) (State, error) {
	select {
	case <-j.done:
		return j.State(), nil
	case <-ctx.Done():
		return j.State(), ctx.Err()
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns a snapshot of completed against total tasks.
func (j *Job) Progress() Progress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Progress{Total: j.total, Completed: j.completed, Open: j.open}
}

// Results returns a copy of the results recorded so far.
func (j *Job) Results() []scanning.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]scanning.Result, len(j.results))
	copy(out, j.results)
	return out
}

// Summary describes a job for listings.
type Summary struct {
	ID          string           `json:"id"`
	State       State            `json:"status"`
	Hosts       int              `json:"hosts"`
	Ports       int              `json:"ports"`
	Concurrency int              `json:"concurrency"`
	Timeout     string           `json:"timeout"`
	Progress    Progress         `json:"progress"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Options     scanning.Options `json:"-"`
}

// Summary returns a snapshot suitable for API listings.
func (j *Job) Summary() Summary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Summary{
		ID:          j.id,
		State:       j.state,
		Hosts:       j.hostCount,
		Ports:       j.portCount,
		Concurrency: j.concurrency,
		Timeout:     j.options.EffectiveTimeout().String(),
		Progress:    Progress{Total: j.total, Completed: j.completed, Open: j.open},
		StartedAt:   j.startedAt,
		Options:     j.options,
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		s.FinishedAt = &finished
	}
	return s
}

// Total returns the number of tasks in the scan.
func (j *Job) Total() int {
	return j.total
}

// Concurrency returns the effective worker count.
func (j *Job) Concurrency() int {
	return j.concurrency
}
