package scanning

import (
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a probe when no timeout is requested.
const DefaultTimeout = 500 * time.Millisecond

// Status is the classified outcome of one connect probe.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusFiltered Status = "filtered"
	StatusError    Status = "error"
)

// Task is one host:port pair to probe. Tasks are immutable once queued.
type Task struct {
	Host    netip.Addr
	Port    uint16
	Timeout time.Duration
}

// Address returns the dialable host:port form of the task.
func (t Task) Address() string {
	return net.JoinHostPort(t.Host.String(), strconv.Itoa(int(t.Port)))
}

// Result is produced exactly once per Task.
type Result struct {
	Host     string        `json:"host"`
	Port     uint16        `json:"port"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// Address returns host:port for display.
func (r Result) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// IsOpen reports whether the port accepted a connection.
func (r Result) IsOpen() bool {
	return r.Status == StatusOpen
}

// NewResult builds a result for task with the given status.
func NewResult(task Task, status Status) Result {
	return Result{
		Host:   task.Host.String(),
		Port:   task.Port,
		Status: status,
	}
}

// Speed is a named concurrency tier.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedNormal Speed = "normal"
	SpeedSlow   Speed = "slow"
)

// Concurrency returns the worker count requested by the tier. Unknown tiers
// behave like SpeedNormal.
func (s Speed) Concurrency() int {
	switch s {
	case SpeedFast:
		return 100
	case SpeedSlow:
		return 5
	default:
		return 20
	}
}

// ParseSpeed maps a case-insensitive tier name onto Speed, reporting whether
// the name was recognised.
func ParseSpeed(name string) (Speed, bool) {
	switch s := Speed(strings.ToLower(strings.TrimSpace(name))); s {
	case SpeedFast, SpeedNormal, SpeedSlow:
		return s, true
	case "":
		return SpeedNormal, true
	default:
		return SpeedNormal, false
	}
}

// Options control how a scan is run.
type Options struct {
	// Concurrency overrides the speed tier when positive.
	Concurrency int `json:"concurrency,omitempty"`
	// Speed selects the tier used when Concurrency is not set.
	Speed Speed `json:"speed,omitempty"`
	// Timeout bounds each probe. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// RequestedConcurrency returns the worker count asked for before capping by
// the number of tasks.
func (o Options) RequestedConcurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return o.Speed.Concurrency()
}

// EffectiveTimeout returns the per-probe timeout.
func (o Options) EffectiveTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}
