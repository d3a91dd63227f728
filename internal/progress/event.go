package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the kind of event.
type Stage string

// Supported stages. StageOutput events are the log entries captured from the
// worker; every other stage is a status event emitted by the supervisor.
const (
	StageRunStart Stage = "RUN_START"
	StageOutput   Stage = "OUTPUT"
	StageStopping Stage = "RUN_STOPPING"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Outcome classifies how a run ended.
type Outcome string

// Supported outcomes for StageRunDone events.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeStopped Outcome = "stopped"
)

// Event is a single log entry or status change for one run.
type Event struct {
	// RunID identifies the worker invocation.
	RunID uuid.UUID
	// TS is when the supervisor took the line off the stream or changed state.
	TS time.Time
	// Stage denotes which kind of event occurred.
	Stage Stage
	// Text is the trimmed output line or a human-readable status message.
	Text string
	// Mode is "crawl" or "init_db:<backend>" on StageRunStart.
	Mode string
	// Platform and Keywords describe the crawl on StageRunStart.
	Platform string
	Keywords []string
	// ExitCode and Outcome are set on StageRunDone.
	ExitCode int
	Outcome  Outcome
	// Dur is the wall time of the run on StageRunDone and StageRunError.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageOutput, StageStopping, StageRunError:
	case StageRunDone:
		if e.Outcome == "" {
			return errors.New("run done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// IsStatus reports whether the event describes a state change rather than output.
func (e Event) IsStatus() bool {
	return e.Stage != StageOutput
}

// Printable reports whether the event belongs in a display log. Every output
// line does, blank ones included; status events only when they carry text.
func (e Event) Printable() bool {
	return e.Stage == StageOutput || e.Text != ""
}

// Format renders the event as a display line, "[15:04:05] text".
func (e Event) Format() string {
	return fmt.Sprintf("[%s] %s", e.TS.Local().Format("15:04:05"), e.Text)
}
