// Package workers provides the bounded worker pool that drains a scan's task
// queue. Workers pull tasks from a shared TaskQueue, probe them, and publish
// exactly one result per task. It integrates with the structured logging and
// metrics systems.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanning"
)

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// ShutdownTimeout is the maximum time Shutdown waits for workers to exit.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            scanning.SpeedNormal.Concurrency(),
		ShutdownTimeout: 2 * time.Second,
	}
}

// Pool manages a fixed set of worker goroutines for one scan.
type Pool struct {
	config     Config
	queue      *TaskQueue
	prober     scanning.Prober
	metrics    *metrics.PrometheusMetrics
	logger     *logging.Logger
	results    chan scanning.Result
	workers    []*worker
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	startOnce  sync.Once
	shutdown32 int32 // atomic shutdown flag
}

// worker represents a single worker goroutine.
type worker struct {
	id   int
	pool *Pool
}

// New creates a worker pool that drains queue with prober. Cancelling ctx
// has the same effect as Shutdown. A nil metrics uses the global instance.
func New(ctx context.Context, config Config, queue *TaskQueue, prober scanning.Prober,
	m *metrics.PrometheusMetrics) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}

	poolCtx, cancel := context.WithCancel(ctx)

	pool := &Pool{
		config:  config,
		queue:   queue,
		prober:  prober,
		metrics: m,
		logger:  logging.Default().WithComponent("workers"),
		results: make(chan scanning.Result, config.Size),
		workers: make([]*worker, config.Size),
		ctx:     poolCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	for i := 0; i < config.Size; i++ {
		pool.workers[i] = &worker{
			id:   i,
			pool: pool,
		}
	}

	return pool
}

// Start launches the workers. Calling Start more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queued_tasks", p.queue.Len())

		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run()
		}

		// Results closes once every worker has exited.
		go func() {
			p.wg.Wait()
			close(p.results)
			close(p.done)
		}()
	})
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.config.Size
}

// Results returns the channel workers publish to. It is closed after every
// worker has exited.
func (p *Pool) Results() <-chan scanning.Result {
	return p.results
}

// Shutdown stops the pool: pending tasks are discarded, in-flight probes are
// cancelled and their results abandoned. It waits up to ShutdownTimeout for
// workers to exit. Calling Shutdown again is a no-op.
func (p *Pool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.shutdown32, 0, 1) {
		// Already shut down
		return nil
	}

	p.cancel()
	dropped := p.queue.Drain()
	p.logger.Debug("Shutting down worker pool", "discarded_tasks", dropped)

	// Start is a no-op from here on, so an unstarted pool has nothing to wait for.
	p.startOnce.Do(func() { close(p.done) })

	select {
	case <-p.done:
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("Worker pool shutdown timeout, abandoning workers",
			"timeout", p.config.ShutdownTimeout)
		return errors.NewScanError(errors.CodeTimeout,
			fmt.Sprintf("worker pool shutdown timed out after %s", p.config.ShutdownTimeout))
	}
}

// run pulls tasks until the queue is empty or the pool is cancelled.
func (w *worker) run() {
	defer w.pool.wg.Done()

	w.pool.metrics.WorkerStarted()
	defer w.pool.metrics.WorkerStopped()

	for {
		if w.pool.ctx.Err() != nil {
			return
		}
		task, ok := w.pool.queue.Pop()
		if !ok {
			return
		}

		result := w.execute(task)

		select {
		case w.pool.results <- result:
		case <-w.pool.ctx.Done():
			return
		}
	}
}

// execute probes one task. A panic inside the prober resolves the task as
// StatusError so the scan still reaches completion.
func (w *worker) execute(task scanning.Task) (result scanning.Result) {
	start := time.Now()
	w.pool.metrics.ProbeStarted()

	defer func() {
		if r := recover(); r != nil {
			failure := errors.NewScanErrorWithTarget(errors.CodeWorkerFailure,
				fmt.Sprintf("worker panicked: %v", r), task.Address()).
				WithContext("worker_id", w.id)
			result = scanning.NewResult(task, scanning.StatusError)
			result.Error = failure.Error()
			w.pool.metrics.IncrementWorkerFailures()
			w.pool.logger.WithError(failure).Error("Worker failed while probing",
				"code", failure.Code,
				"worker_id", w.id)
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		w.pool.metrics.ProbeFinished(string(result.Status), result.Duration)
	}()

	result = w.pool.prober.Probe(w.pool.ctx, task)
	if result.Status == "" {
		result = scanning.NewResult(task, scanning.StatusError)
		result.Error = "probe returned no status"
	}
	w.pool.logger.DebugProbe(task.Address(), string(result.Status), "worker_id", w.id)
	return result
}
