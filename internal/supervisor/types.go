package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of the process slot.
type State int

// Slot states.
const (
	StateIdle State = iota
	StateLaunching
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Run modes recorded on handles and events.
const (
	ModeCrawl      = "crawl"
	modeInitPrefix = "init_db:"
)

// InitMode is the run mode recorded for a database initialisation.
func InitMode(backend string) string {
	return modeInitPrefix + backend
}

// InitBackend reports the backend of an init mode.
func InitBackend(mode string) (string, bool) {
	return strings.CutPrefix(mode, modeInitPrefix)
}

// InitDB backends accepted by the worker.
var InitBackends = []string{"sqlite", "mysql"}

// Handle describes the live worker.
type Handle struct {
	RunID     uuid.UUID
	PID       int
	Mode      string
	Command   []string
	StartedAt time.Time
}

// ExitStatus classifies a finished run. Code follows the worker's exit status;
// a process killed by a signal reports the negated signal number.
type ExitStatus struct {
	RunID    uuid.UUID
	Code     int
	Success  bool
	Stopped  bool
	Duration time.Duration
}

// ErrBusy is returned when a launch is requested while the slot is not Idle.
var ErrBusy = errors.New("a worker is already active")

// ProcessSpawnError reports that the worker process could not be started.
type ProcessSpawnError struct {
	Command []string
	Err     error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("start worker %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }
