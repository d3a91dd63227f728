// Package store declares interfaces for persisting worker run history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the worker_runs status column.
type RunStatus string

// Run statuses persisted in worker_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	RunStopped RunStatus = "stopped"
	RunError   RunStatus = "error"
)

// Terminal reports whether the status describes a finished run.
func (s RunStatus) Terminal() bool {
	return s != RunRunning && s != ""
}

// RunRecord models one row of worker_runs.
type RunRecord struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// Mode is "crawl" or "init_db:<backend>".
	Mode string
	// Platform and Keywords are empty for init_db runs.
	Platform string
	Keywords []string
	// StartedAt captures when the worker was spawned.
	StartedAt time.Time
	// FinishedAt is nil until the run completes.
	FinishedAt *time.Time
	// Status is running/success/failure/stopped/error.
	Status RunStatus
	// ExitCode is nil while running or when the process never reported one.
	ExitCode *int
	// Lines counts output lines captured for the run.
	Lines int64
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// RunStart carries the columns written when a run begins.
type RunStart struct {
	ID        uuid.UUID
	Mode      string
	Platform  string
	Keywords  []string
	StartedAt time.Time
}

// RunCompletion carries the columns written when a run ends.
type RunCompletion struct {
	FinishedAt   time.Time
	Status       RunStatus
	ExitCode     *int
	ErrorMessage *string
}

// RunRepository persists run history.
type RunRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the run row.
	UpsertRunStart(ctx context.Context, run RunStart) error
	// AddOutputLines increments the captured line counter.
	AddOutputLines(ctx context.Context, runID uuid.UUID, delta int64) error
	// CompleteRun marks the run finished.
	CompleteRun(ctx context.Context, runID uuid.UUID, done RunCompletion) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (RunRecord, error)
	// ListRuns returns runs newest first, filtered by optional status plus limit/offset.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]RunRecord, error)
}
