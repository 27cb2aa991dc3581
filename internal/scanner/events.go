package scanner

import (
	"time"

	"github.com/anstrom/portsweep/internal/scanning"
)

// EventType identifies what an Event carries.
type EventType string

const (
	// EventResult carries one resolved probe.
	EventResult EventType = "result"
	// EventComplete is the terminal event of a scan that resolved every task.
	EventComplete EventType = "complete"
	// EventStopped is the terminal event of a scan ended by Stop.
	EventStopped EventType = "stopped"
)

// Event is emitted on Job.Events. Result is set for EventResult; Results
// holds every result for EventComplete.
type Event struct {
	Type    EventType         `json:"type"`
	Result  *scanning.Result  `json:"result,omitempty"`
	Results []scanning.Result `json:"results,omitempty"`
	Time    time.Time         `json:"time"`
}

// IsTerminal reports whether no further events follow e.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventStopped
}

// State is the lifecycle state of a Job.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
)

// Progress is a point-in-time snapshot of a Job.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Open      int `json:"open"`
}

// Percent returns completion in the range 0-100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}
