package workers

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanning"
)

// stubProber records every task it sees and tracks concurrent probes.
type stubProber struct {
	delay    time.Duration
	panicOn  uint16
	mu       sync.Mutex
	seen     map[string]int
	inFlight int32
	maxSeen  int32
}

func newStubProber(delay time.Duration) *stubProber {
	return &stubProber{delay: delay, seen: make(map[string]int)}
}

func (s *stubProber) Probe(ctx context.Context, task scanning.Task) scanning.Result {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&s.maxSeen)
		if n <= prev || atomic.CompareAndSwapInt32(&s.maxSeen, prev, n) {
			break
		}
	}

	s.mu.Lock()
	s.seen[task.Address()]++
	s.mu.Unlock()

	if s.panicOn != 0 && task.Port == s.panicOn {
		panic("probe exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return scanning.NewResult(task, scanning.StatusClosed)
		}
	}
	return scanning.NewResult(task, scanning.StatusOpen)
}

func hostsN(n int) []netip.Addr {
	out := make([]netip.Addr, n)
	for i := range out {
		out[i] = netip.AddrFrom4([4]byte{10, 0, byte(i >> 8), byte(i)})
	}
	return out
}

func portsN(n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(1000 + i)
	}
	return out
}

func collect(t *testing.T, pool *Pool) []scanning.Result {
	t.Helper()
	var results []scanning.Result
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-pool.Results():
			if !ok {
				return results
			}
			results = append(results, r)
		case <-timeout:
			t.Fatal("timed out waiting for pool results")
		}
	}
}

func TestTaskQueue(t *testing.T) {
	t.Run("host-major port-minor order", func(t *testing.T) {
		q := NewTaskQueue(hostsN(2), []uint16{22, 80}, time.Second)
		require.Equal(t, 4, q.Total())

		var got []string
		for {
			task, ok := q.Pop()
			if !ok {
				break
			}
			assert.Equal(t, time.Second, task.Timeout)
			got = append(got, task.Address())
		}
		assert.Equal(t, []string{"10.0.0.0:22", "10.0.0.0:80", "10.0.0.1:22", "10.0.0.1:80"}, got)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("drain discards the remainder", func(t *testing.T) {
		q := NewTaskQueue(hostsN(3), portsN(3), time.Second)
		_, _ = q.Pop()
		assert.Equal(t, 8, q.Drain())
		_, ok := q.Pop()
		assert.False(t, ok)
		assert.Equal(t, 0, q.Drain())
	})

	t.Run("concurrent pops are exactly once", func(t *testing.T) {
		q := NewTaskQueue(hostsN(50), portsN(40), time.Second)
		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					task, ok := q.Pop()
					if !ok {
						return
					}
					mu.Lock()
					seen[task.Address()]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 2000)
		for addr, count := range seen {
			assert.Equal(t, 1, count, "task %s popped more than once", addr)
		}
	})
}

func TestPoolDrainsQueue(t *testing.T) {
	prober := newStubProber(time.Millisecond)
	queue := NewTaskQueue(hostsN(10), portsN(20), 100*time.Millisecond)
	pool := New(context.Background(), Config{Size: 8}, queue, prober, metrics.NewPrometheusMetrics())

	pool.Start()
	results := collect(t, pool)

	assert.Len(t, results, 200)
	assert.Len(t, prober.seen, 200)
	for addr, count := range prober.seen {
		assert.Equal(t, 1, count, "task %s probed more than once", addr)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&prober.maxSeen), int32(8))
	require.NoError(t, pool.Shutdown())
}

func TestPoolConcurrencyBound(t *testing.T) {
	for _, size := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			prober := newStubProber(5 * time.Millisecond)
			queue := NewTaskQueue(hostsN(4), portsN(16), time.Second)
			pool := New(context.Background(), Config{Size: size}, queue, prober, metrics.NewPrometheusMetrics())

			pool.Start()
			results := collect(t, pool)

			assert.Len(t, results, 64)
			assert.LessOrEqual(t, atomic.LoadInt32(&prober.maxSeen), int32(size))
		})
	}
}

func TestPoolWorkerPanicResolvesTask(t *testing.T) {
	prober := newStubProber(0)
	prober.panicOn = 1001
	m := metrics.NewPrometheusMetrics()
	queue := NewTaskQueue(hostsN(3), portsN(3), time.Second)
	pool := New(context.Background(), Config{Size: 2}, queue, prober, m)

	pool.Start()
	results := collect(t, pool)

	require.Len(t, results, 9)
	failures := 0
	for _, r := range results {
		if r.Port == 1001 {
			assert.Equal(t, scanning.StatusError, r.Status)
			assert.Contains(t, r.Error, "probe exploded")
			assert.Contains(t, r.Error, "[WORKER_FAILURE]")
			failures++
		} else {
			assert.Equal(t, scanning.StatusOpen, r.Status)
		}
	}
	assert.Equal(t, 3, failures)
}

func TestPoolShutdown(t *testing.T) {
	t.Run("discards pending work and is idempotent", func(t *testing.T) {
		prober := newStubProber(time.Second)
		queue := NewTaskQueue(hostsN(10), portsN(10), time.Second)
		pool := New(context.Background(), Config{Size: 2}, queue, prober, metrics.NewPrometheusMetrics())
		pool.Start()

		time.Sleep(20 * time.Millisecond)
		start := time.Now()
		require.NoError(t, pool.Shutdown())
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.NoError(t, pool.Shutdown())

		assert.Equal(t, 0, queue.Len())
		<-pool.done
		assert.LessOrEqual(t, len(prober.seen), 2)
	})

	t.Run("shutdown before start", func(t *testing.T) {
		queue := NewTaskQueue(hostsN(1), portsN(1), time.Second)
		pool := New(context.Background(), Config{Size: 1}, queue, newStubProber(0), metrics.NewPrometheusMetrics())
		require.NoError(t, pool.Shutdown())
		pool.Start()
		<-pool.done
		assert.Equal(t, 0, queue.Len())
	})

	t.Run("parent context cancellation stops workers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		queue := NewTaskQueue(hostsN(5), portsN(5), time.Second)
		pool := New(ctx, Config{Size: 2}, queue, newStubProber(time.Second), metrics.NewPrometheusMetrics())
		pool.Start()

		cancel()
		select {
		case <-pool.done:
		case <-time.After(time.Second):
			t.Fatal("workers did not exit after cancellation")
		}
	})
}

// stuckProber ignores cancellation until release is closed.
type stuckProber struct {
	release chan struct{}
}

func (s stuckProber) Probe(_ context.Context, task scanning.Task) scanning.Result {
	<-s.release
	return scanning.NewResult(task, scanning.StatusClosed)
}

func TestPoolShutdownTimeout(t *testing.T) {
	prober := stuckProber{release: make(chan struct{})}
	queue := NewTaskQueue(hostsN(1), portsN(2), time.Second)
	pool := New(context.Background(), Config{Size: 2, ShutdownTimeout: 20 * time.Millisecond},
		queue, prober, metrics.NewPrometheusMetrics())
	pool.Start()
	time.Sleep(20 * time.Millisecond)

	err := pool.Shutdown()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTimeout))
	assert.Contains(t, err.Error(), "timed out")

	close(prober.release)
	select {
	case <-pool.done:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after release")
	}
}

func TestPoolDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20, cfg.Size)

	pool := New(context.Background(), Config{}, NewTaskQueue(nil, nil, 0), newStubProber(0), nil)
	assert.Equal(t, 1, pool.Size())
}

func BenchmarkPoolThroughput(b *testing.B) {
	m := metrics.NewPrometheusMetrics()
	for i := 0; i < b.N; i++ {
		queue := NewTaskQueue(hostsN(10), portsN(100), time.Second)
		pool := New(context.Background(), Config{Size: 32}, queue, newStubProber(0), m)
		pool.Start()
		for range pool.Results() {
		}
	}
}
