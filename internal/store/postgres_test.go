package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), string(model.RunStatusRunning), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), []string{"canggu"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO "run_results"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	results := []model.ScoringResult{
		{RegionID: "canggu", FinalScore: 61, Recommendation: model.RecommendBuy},
		{RegionID: "ubud", FinalScore: 42, Recommendation: model.RecommendWatch},
	}
	err := s.CompleteRun(context.Background(), "run-1", results, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRun_UnknownRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}

func TestPostgresFailRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunStatusFailed), "boom", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockStore(t)

	started := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "regions", "status", "error", "skipped", "started_at", "finished_at"},
		).AddRow("run-1", []byte(`["canggu"]`), model.RunStatusComplete, nil, nil, started, nil))

	resultJSON, err := json.Marshal(model.ScoringResult{RegionID: "canggu", FinalScore: 61})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT result FROM run_results`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(resultJSON))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, []string{"canggu"}, run.Regions)
	require.Len(t, run.Results, 1)
	assert.Equal(t, 61.0, run.Results[0].FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "regions", "status", "error", "skipped", "started_at", "finished_at"},
		))

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgresResultHistory(t *testing.T) {
	s, mock := newMockStore(t)

	first, err := json.Marshal(model.ScoringResult{RegionID: "ubud", FinalScore: 55})
	require.NoError(t, err)
	second, err := json.Marshal(model.ScoringResult{RegionID: "ubud", FinalScore: 45})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT result FROM run_results WHERE region_id`).
		WithArgs("ubud", 20).
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(first).AddRow(second))

	history, err := s.ResultHistory(context.Background(), "ubud", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 55.0, history[0].FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
