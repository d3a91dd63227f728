package sinks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/storage/memory"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

// TestStoreSinkPersistsRun ensures a full run lands in the repository with its line count.
func TestStoreSinkPersistsRun(t *testing.T) {
	t.Parallel()

	repo := memory.NewRunStore()
	sink := NewStoreSink(repo, nil)
	runID := uuid.New()
	now := time.Now().UTC()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now, Mode: "crawl", Platform: "xhs", Keywords: []string{"coffee"}},
		{RunID: runID, Stage: progress.StageOutput, TS: now, Text: "one"},
		{RunID: runID, Stage: progress.StageOutput, TS: now, Text: "two"},
		{RunID: runID, Stage: progress.StageRunDone, TS: now.Add(time.Second), ExitCode: 1, Outcome: progress.OutcomeFailure},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageOutput, TS: now, Text: "late"},
	}))

	rec, err := repo.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, store.RunFailure, rec.Status)
	require.Equal(t, int64(3), rec.Lines)
	require.Equal(t, "xhs", rec.Platform)
	require.Equal(t, 1, *rec.ExitCode)
}

// TestStoreSinkOrdersCallsAroundStatus flushes pending lines before completing a run.
func TestStoreSinkOrdersCallsAroundStatus(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	runID := uuid.New()
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now},
		{RunID: runID, Stage: progress.StageOutput, TS: now, Text: "x"},
		{RunID: runID, Stage: progress.StageStopping, TS: now, Text: "stopping"},
		{RunID: runID, Stage: progress.StageRunDone, TS: now, Outcome: progress.OutcomeStopped},
	}))
	require.Equal(t, []string{"start", "lines:1", "complete:stopped"}, repo.calls)
}

// TestStoreSinkRunError records the failure reason.
func TestStoreSinkRunError(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{}
	sink := NewStoreSink(repo, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: uuid.New(), Stage: progress.StageRunError, TS: time.Now(), Text: "read output: boom"},
	}))
	require.Equal(t, []string{"complete:error"}, repo.calls)
	require.Equal(t, "read output: boom", *repo.lastMsg)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRunRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: uuid.New(), Stage: progress.StageRunStart, TS: time.Now()},
	})
	require.Error(t, err)
}

type fakeRunRepo struct {
	fail    bool
	calls   []string
	lastMsg *string
}

func (f *fakeRunRepo) UpsertRunStart(context.Context, store.RunStart) error {
	if f.fail {
		return assertErr("start")
	}
	f.calls = append(f.calls, "start")
	return nil
}

func (f *fakeRunRepo) AddOutputLines(_ context.Context, _ uuid.UUID, delta int64) error {
	if f.fail {
		return assertErr("lines")
	}
	f.calls = append(f.calls, fmt.Sprintf("lines:%d", delta))
	return nil
}

func (f *fakeRunRepo) CompleteRun(_ context.Context, _ uuid.UUID, done store.RunCompletion) error {
	if f.fail {
		return assertErr("complete")
	}
	f.calls = append(f.calls, "complete:"+string(done.Status))
	f.lastMsg = done.ErrorMessage
	return nil
}

func (f *fakeRunRepo) GetRun(context.Context, uuid.UUID) (store.RunRecord, error) {
	return store.RunRecord{}, assertErr("read")
}

func (f *fakeRunRepo) ListRuns(context.Context, *store.RunStatus, int, int) ([]store.RunRecord, error) {
	return nil, assertErr("list")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
