package workers

import (
	"net/netip"
	"sync"
	"time"

	"github.com/anstrom/portsweep/internal/scanning"
)

// TaskQueue is the shared FIFO of pending probes for one scan. It enumerates
// the host x port product lazily in host-major, port-minor order, so memory
// stays proportional to the inputs rather than the task count.
type TaskQueue struct {
	mu      sync.Mutex
	hosts   []netip.Addr
	ports   []uint16
	timeout time.Duration
	next    int
	total   int
}

// NewTaskQueue creates a queue holding every (host, port) pair.
func NewTaskQueue(hosts []netip.Addr, ports []uint16, timeout time.Duration) *TaskQueue {
	return &TaskQueue{
		hosts:   hosts,
		ports:   ports,
		timeout: timeout,
		total:   len(hosts) * len(ports),
	}
}

// Pop removes and returns the next task. Each task is returned to exactly
// one caller; ok is false once the queue is empty or drained.
func (q *TaskQueue) Pop() (task scanning.Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= q.total {
		return scanning.Task{}, false
	}
	i := q.next
	q.next++

	return scanning.Task{
		Host:    q.hosts[i/len(q.ports)],
		Port:    q.ports[i%len(q.ports)],
		Timeout: q.timeout,
	}, true
}

// Drain discards every unconsumed task and returns how many were dropped.
func (q *TaskQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.total - q.next
	q.next = q.total
	return dropped
}

// Len returns the number of tasks not yet popped.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total - q.next
}

// Total returns the number of tasks the queue was created with.
func (q *TaskQueue) Total() int {
	return q.total
}
