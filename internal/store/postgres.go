package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/db"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Test hook for pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	regions     JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT,
	skipped     JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_results (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	region_id      TEXT NOT NULL,
	final_score    DOUBLE PRECISION NOT NULL,
	recommendation TEXT NOT NULL,
	result         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, region_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_results_region ON run_results(region_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, regions []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	regionsJSON, err := json.Marshal(regions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal regions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, regions, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, regionsJSON, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Regions:   regions,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, results []model.ScoringResult, skipped []model.SkippedRegion) error {
	now := time.Now().UTC()

	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skipped")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, skipped = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), skippedJSON, now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal result %s", r.RegionID)
		}
		rows = append(rows, []any{runID, r.RegionID, r.FinalScore, string(r.Recommendation), resultJSON, now})
	}

	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "run_results",
		Columns:      []string{"run_id", "region_id", "final_score", "recommendation", "result", "created_at"},
		ConflictKeys: []string{"run_id", "region_id"},
		UpdateCols:   []string{"final_score", "recommendation", "result"},
	}, rows)
	return eris.Wrapf(err, "postgres: insert results for run %s", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := s.scanRunRow(s.pool.QueryRow(ctx,
		`SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT result FROM run_results WHERE run_id = $1 ORDER BY final_score DESC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results for run %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON []byte
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var sr model.ScoringResult
		if err := json.Unmarshal(resultJSON, &sr); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		r.Results = append(r.Results, sr)
	}
	return r, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := s.scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ResultHistory(ctx context.Context, regionID string, limit int) ([]model.ScoringResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM run_results WHERE region_id = $1 ORDER BY created_at DESC LIMIT $2`,
		regionID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: result history %s", regionID)
	}
	defer rows.Close()

	var results []model.ScoringResult
	for rows.Next() {
		var resultJSON []byte
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		var sr model.ScoringResult
		if err := json.Unmarshal(resultJSON, &sr); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal history")
		}
		results = append(results, sr)
	}
	return results, eris.Wrap(rows.Err(), "postgres: history iterate")
}

func (s *PostgresStore) scanRunRow(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var regionsJSON []byte
	var errMsg *string
	var skippedJSON *[]byte
	var finishedAt *time.Time

	err := row.Scan(&r.ID, &regionsJSON, &r.Status, &errMsg, &skippedJSON, &r.StartedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("run not found")
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(regionsJSON, &r.Regions); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal regions")
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if skippedJSON != nil {
		if err := json.Unmarshal(*skippedJSON, &r.Skipped); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal skipped")
		}
	}
	r.FinishedAt = finishedAt
	return &r, nil
}
