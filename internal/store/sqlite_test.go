package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(regionID string, score float64) model.ScoringResult {
	return model.ScoringResult{
		RegionID:       regionID,
		RegionName:     regionID,
		Tier:           2,
		BaseScore:      20,
		FinalScore:     score,
		Recommendation: model.RecommendWatch,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"canggu", "ubud"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, []string{"canggu", "ubud"}, got.Regions)
	assert.Nil(t, got.FinishedAt)
}

func TestCompleteRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"canggu", "ubud", "atlantis"})
	require.NoError(t, err)

	results := []model.ScoringResult{
		sampleResult("ubud", 42.5),
		sampleResult("canggu", 61.0),
	}
	skipped := []model.SkippedRegion{{RegionID: "atlantis", Reason: "unknown region"}}
	require.NoError(t, s.CompleteRun(ctx, run.ID, results, skipped))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.FinishedAt)

	// Results come back highest score first.
	require.Len(t, got.Results, 2)
	assert.Equal(t, "canggu", got.Results[0].RegionID)
	assert.Equal(t, "ubud", got.Results[1].RegionID)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, "atlantis", got.Skipped[0].RegionID)
}

func TestCompleteRun_UnknownRunID(t *testing.T) {
	s := newTestStore(t)
	err := s.CompleteRun(context.Background(), "no-such-run", nil, nil)
	assert.Error(t, err)
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"canggu"})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "context deadline exceeded"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "context deadline exceeded", got.Error)
	assert.NotNil(t, got.FinishedAt)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListRuns_FilterByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, []string{"canggu"})
	require.NoError(t, err)
	b, err := s.CreateRun(ctx, []string{"ubud"})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, b.ID, "boom"))

	failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	running, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, a.ID, running[0].ID)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListRuns_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.CreateRun(ctx, []string{"canggu"})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, RunFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestResultHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, score := range []float64{30, 45, 55} {
		run, err := s.CreateRun(ctx, []string{"ubud"})
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, run.ID, []model.ScoringResult{sampleResult("ubud", score)}, nil))
	}

	history, err := s.ResultHistory(ctx, "ubud", 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = s.ResultHistory(ctx, "ubud", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = s.ResultHistory(ctx, "nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
