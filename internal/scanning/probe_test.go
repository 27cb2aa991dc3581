package scanning

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln, uint16(ln.Addr().(*net.TCPAddr).Port)
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())
	return port
}

func TestTCPProber_Probe(t *testing.T) {
	loopback := netip.MustParseAddr("127.0.0.1")
	prober := NewTCPProber()

	t.Run("listening port is open", func(t *testing.T) {
		_, port := listen(t)
		result := prober.Probe(context.Background(), Task{Host: loopback, Port: port, Timeout: time.Second})

		assert.Equal(t, StatusOpen, result.Status)
		assert.Equal(t, "127.0.0.1", result.Host)
		assert.Equal(t, port, result.Port)
		assert.Empty(t, result.Error)
	})

	t.Run("unused port is closed", func(t *testing.T) {
		port := closedPort(t)
		result := prober.Probe(context.Background(), Task{Host: loopback, Port: port, Timeout: 500 * time.Millisecond})

		// A local firewall may drop instead of reset.
		assert.Contains(t, []Status{StatusClosed, StatusFiltered}, result.Status)
	})
}

type fakeConn struct {
	net.Conn
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTCPProber_Classification(t *testing.T) {
	task := Task{Host: netip.MustParseAddr("10.0.0.1"), Port: 22, Timeout: 50 * time.Millisecond}

	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantDetail bool
	}{
		{"connected", nil, StatusOpen, false},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, StatusClosed, false},
		{"timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, StatusFiltered, false},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), StatusFiltered, false},
		{"unreachable", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, StatusClosed, true},
		{"reset", errors.New("connection reset by peer"), StatusClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{}
			var gotTimeout time.Duration
			prober := &TCPProber{dial: func(_ context.Context, _, address string, timeout time.Duration) (net.Conn, error) {
				assert.Equal(t, "10.0.0.1:22", address)
				gotTimeout = timeout
				if tt.err != nil {
					return nil, tt.err
				}
				return conn, nil
			}}

			result := prober.Probe(context.Background(), task)

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantDetail, result.Error != "")
			if tt.wantDetail {
				assert.Contains(t, result.Error, "[PROBE_ERROR]")
				assert.Contains(t, result.Error, tt.err.Error())
			}
			assert.Equal(t, task.Timeout, gotTimeout)
			if tt.err == nil {
				assert.True(t, conn.closed, "connection must be released")
			}
		})
	}
}

func TestTCPProber_DefaultTimeout(t *testing.T) {
	var gotTimeout time.Duration
	prober := &TCPProber{dial: func(_ context.Context, _, _ string, timeout time.Duration) (net.Conn, error) {
		gotTimeout = timeout
		return nil, errors.New("connection refused")
	}}

	result := prober.Probe(context.Background(), Task{Host: netip.MustParseAddr("10.0.0.1"), Port: 1})
	assert.Equal(t, DefaultTimeout, gotTimeout)
	assert.Equal(t, StatusClosed, result.Status)
	assert.Empty(t, result.Error)
}
