package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

// StoreSink persists run history via a store.RunRepository. Output lines are
// counted per run and written as one increment per batch segment.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order. Pending line counts are written before
// any status event so that a completed run never misses its tail.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	lines := make(map[uuid.UUID]int64)

	for _, evt := range batch {
		if evt.Stage == progress.StageOutput {
			lines[evt.RunID]++
			continue
		}
		if err := s.flushLines(ctx, lines); err != nil {
			return err
		}
		if err := s.handleRunEvent(ctx, evt); err != nil {
			return err
		}
	}
	return s.flushLines(ctx, lines)
}

func (s *StoreSink) flushLines(ctx context.Context, lines map[uuid.UUID]int64) error {
	for runID, n := range lines {
		if err := s.repo.AddOutputLines(ctx, runID, n); err != nil {
			return fmt.Errorf("add output lines: %w", err)
		}
		delete(lines, runID)
	}
	return nil
}

func (s *StoreSink) handleRunEvent(ctx context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		if err := s.repo.UpsertRunStart(ctx, store.RunStart{
			ID:        evt.RunID,
			Mode:      evt.Mode,
			Platform:  evt.Platform,
			Keywords:  evt.Keywords,
			StartedAt: evt.TS,
		}); err != nil {
			return fmt.Errorf("upsert run start: %w", err)
		}
	case progress.StageRunDone:
		code := evt.ExitCode
		if err := s.repo.CompleteRun(ctx, evt.RunID, store.RunCompletion{
			FinishedAt: evt.TS,
			Status:     statusFor(evt.Outcome),
			ExitCode:   &code,
		}); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	case progress.StageRunError:
		var note *string
		if evt.Text != "" {
			note = &evt.Text
		}
		if err := s.repo.CompleteRun(ctx, evt.RunID, store.RunCompletion{
			FinishedAt:   evt.TS,
			Status:       store.RunError,
			ErrorMessage: note,
		}); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func statusFor(outcome progress.Outcome) store.RunStatus {
	switch outcome {
	case progress.OutcomeSuccess:
		return store.RunSuccess
	case progress.OutcomeStopped:
		return store.RunStopped
	default:
		return store.RunFailure
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
