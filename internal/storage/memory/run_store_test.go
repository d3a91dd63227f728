package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mediacrawler-panel/internal/store"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.UpsertRunStart(ctx, store.RunStart{
		ID: id, Mode: "crawl", Platform: "xhs", Keywords: []string{"coffee"}, StartedAt: started,
	}))
	require.NoError(t, s.AddOutputLines(ctx, id, 3))
	require.NoError(t, s.AddOutputLines(ctx, id, 2))

	code := 0
	require.NoError(t, s.CompleteRun(ctx, id, store.RunCompletion{
		FinishedAt: started.Add(time.Minute), Status: store.RunSuccess, ExitCode: &code,
	}))

	rec, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, rec.Status)
	require.Equal(t, int64(5), rec.Lines)
	require.Equal(t, []string{"coffee"}, rec.Keywords)
	require.NotNil(t, rec.FinishedAt)
	require.Equal(t, 0, *rec.ExitCode)

	rec.Keywords[0] = "mutated"
	again, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "coffee", again.Keywords[0])
}

func TestRunStoreUnknownRun(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	_, err := s.GetRun(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.AddOutputLines(context.Background(), uuid.New(), 1), store.ErrNotFound)
	require.ErrorIs(t, s.CompleteRun(context.Background(), uuid.New(), store.RunCompletion{}), store.ErrNotFound)
}

func TestRunStoreListRunsOrdersAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewRunStore()
	base := time.Unix(1700000000, 0).UTC()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, s.UpsertRunStart(ctx, store.RunStart{ID: ids[i], Mode: "crawl", StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, s.CompleteRun(ctx, ids[0], store.RunCompletion{FinishedAt: base, Status: store.RunStopped}))

	all, err := s.ListRuns(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, ids[2], all[0].ID)
	require.Equal(t, ids[0], all[2].ID)

	paged, err := s.ListRuns(ctx, nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, ids[1], paged[0].ID)

	stopped := store.RunStopped
	filtered, err := s.ListRuns(ctx, &stopped, 10, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, ids[0], filtered[0].ID)

	empty, err := s.ListRuns(ctx, nil, 10, 5)
	require.NoError(t, err)
	require.Empty(t, empty)
}
