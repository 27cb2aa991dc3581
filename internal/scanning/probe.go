package scanning

import (
	"context"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/anstrom/portsweep/internal/errors"
)

//go:generate mockgen -source=probe.go -destination=mocks/mock_prober.go -package=mocks

// Prober performs a single connect probe. Implementations must return exactly
// one Result per call and release any socket before returning.
type Prober interface {
	Probe(ctx context.Context, task Task) Result
}

// TCPProber classifies ports by attempting a full TCP connect.
type TCPProber struct {
	dial func(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error)
}

// NewTCPProber creates a prober that dials with the operating system stack.
func NewTCPProber() *TCPProber {
	return &TCPProber{dial: dialTCP}
}

func dialTCP(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1,
	}
	return dialer.DialContext(ctx, network, address)
}

// Probe dials task.Address once, bounded by task.Timeout.
func (p *TCPProber) Probe(ctx context.Context, task Task) Result {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	conn, err := p.dial(ctx, "tcp4", task.Address(), timeout)
	if conn != nil {
		_ = conn.Close()
	}

	result := NewResult(task, Classify(err))
	if err != nil && result.Status == StatusClosed && !isConnectionRefused(err) {
		// Other socket errors count as closed; keep the cause for display.
		result.Error = errors.WrapScanErrorWithTarget(errors.CodeProbeError,
			"connect failed", task.Address(), err).Error()
	}
	result.Duration = time.Since(start)
	return result
}

// Classify maps a dial error onto a probe status. A nil error means open.
// Refusals and all other socket errors are closed; timeouts are filtered.
func Classify(err error) Status {
	if err == nil {
		return StatusOpen
	}
	if isTimeout(err) {
		return StatusFiltered
	}
	return StatusClosed
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionRefused checks for an RST answer to the SYN.
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "actively refused")
}
