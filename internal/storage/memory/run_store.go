// Package memory keeps run history in-process for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

// RunStore is an in-memory store.RunRepository.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.RunRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.RunRecord)}
}

// UpsertRunStart records a running run; repeating the call refreshes metadata
// but never resets counters or a terminal status.
func (s *RunStore) UpsertRunStart(_ context.Context, run store.RunStart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[run.ID]
	if !ok {
		rec = store.RunRecord{ID: run.ID, Status: store.RunRunning}
	}
	rec.Mode = run.Mode
	rec.Platform = run.Platform
	rec.Keywords = append([]string(nil), run.Keywords...)
	rec.StartedAt = run.StartedAt
	s.runs[run.ID] = rec
	return nil
}

// AddOutputLines increments the line counter of an existing run.
func (s *RunStore) AddOutputLines(_ context.Context, runID uuid.UUID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Lines += delta
	s.runs[runID] = rec
	return nil
}

// CompleteRun stores the terminal status of a run.
func (s *RunStore) CompleteRun(_ context.Context, runID uuid.UUID, done store.RunCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	finished := done.FinishedAt
	rec.FinishedAt = &finished
	rec.Status = done.Status
	rec.ExitCode = copyInt(done.ExitCode)
	rec.ErrorMessage = copyString(done.ErrorMessage)
	s.runs[runID] = rec
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.RunRecord, error) {
	s.mu.RLock()
	out := make([]store.RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != nil && rec.Status != *status {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []store.RunRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func cloneRecord(rec store.RunRecord) store.RunRecord {
	rec.Keywords = append([]string(nil), rec.Keywords...)
	if rec.FinishedAt != nil {
		finished := *rec.FinishedAt
		rec.FinishedAt = &finished
	}
	rec.ExitCode = copyInt(rec.ExitCode)
	rec.ErrorMessage = copyString(rec.ErrorMessage)
	return rec
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
