package timeout

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a scheduled task.
type State int32

const (
	// StatePending is the initial state: waiting for the delay to elapse.
	StatePending State = iota
	// StateFiring means the task committed to running its callback.
	StateFiring
	// StateFired is terminal: the callback returned (or panicked).
	StateFired
	// StateStopped is terminal: a Stop call won the arbitration.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	case StateFired:
		return "fired"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool { return s == StateFired || s == StateStopped }

// Config controls scheduler diagnostics.
//
// Defaults (when fields are zero):
//   - PanicLogPerSec: 1
//   - PanicLogBurst: 5
type Config struct {
	// PanicLogPerSec bounds how many callback panics per second are logged
	// with a full stack. Suppressed panics are still counted and published.
	PanicLogPerSec float64
	PanicLogBurst  int
}

func (c Config) withDefaults() Config {
	if c.PanicLogPerSec <= 0 {
		c.PanicLogPerSec = 1
	}
	if c.PanicLogBurst <= 0 {
		c.PanicLogBurst = 5
	}
	return c
}

// Event types published on the event bus.
const (
	EventScheduled = "timeout.scheduled"
	EventFired     = "timeout.fired"
	EventStopped   = "timeout.stopped"
	EventPanic     = "timeout.panic"
)

// TaskEvent is the payload of every scheduler event.
type TaskEvent struct {
	ID    uint64        `json:"id"`
	Delay time.Duration `json:"delay"`
	State string        `json:"state"`
	Panic string        `json:"panic,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	// Pending is the number of tasks currently registered.
	Pending int
	LastID  uint64

	Started  uint64
	Fired    uint64
	Stopped  uint64
	Panicked uint64
}
