package sensors

import "time"

// State is the scheduler state of a thread. The states double as the categories of the
// activity graph.
type State uint8

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case DiskSleep:
		return "disk sleep"
	case Stopped:
		return "stopped"
	case Zombie:
		return "zombie"
	case Idle:
		return "idle"
	default:
		return "?"
	}
}

const (
	Running State = iota
	Sleeping
	DiskSleep
	Stopped
	Zombie
	Idle
	Unknown
)

// States lists every known state in column order.
var States = []State{Running, Sleeping, DiskSleep, Stopped, Zombie, Idle}

// ParseState maps the one-letter state code used by /proc to a State.
func ParseState(code byte) State {
	switch code {
	case 'R':
		return Running
	case 'S':
		return Sleeping
	case 'D':
		return DiskSleep
	case 'T', 't':
		return Stopped
	case 'Z', 'X':
		return Zombie
	case 'I':
		return Idle
	default:
		return Unknown
	}
}

// Reading is one observation of a thread.
type Reading struct {
	State State
	// CPU is the CPU time the thread consumed since the previous reading.
	CPU time.Duration
}

type Sensor interface {
	Name() string
	Read() (Reading, error)
}
