package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	regions     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT,
	skipped     TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_results (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	region_id      TEXT NOT NULL,
	final_score    REAL NOT NULL,
	recommendation TEXT NOT NULL,
	result         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, region_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_results_region ON run_results(region_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, regions []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	regionsJSON, err := json.Marshal(regions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal regions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, regions, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(regionsJSON), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Regions:   regions,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, results []model.ScoringResult, skipped []model.SkippedRegion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skipped")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, skipped = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(skippedJSON), now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}

	for _, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal result %s", r.RegionID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_results (run_id, region_id, final_score, recommendation, result, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, region_id) DO UPDATE SET
			   final_score = excluded.final_score,
			   recommendation = excluded.recommendation,
			   result = excluded.result`,
			runID, r.RegionID, r.FinalScore, string(r.Recommendation), string(resultJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.RegionID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)

	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM run_results WHERE run_id = ? ORDER BY final_score DESC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results for run %s", runID)
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var sr model.ScoringResult
		if err := json.Unmarshal([]byte(resultJSON), &sr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		r.Results = append(r.Results, sr)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, regions, status, error, skipped, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ResultHistory(ctx context.Context, regionID string, limit int) ([]model.ScoringResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM run_results WHERE region_id = ? ORDER BY created_at DESC LIMIT ?`,
		regionID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: result history %s", regionID)
	}
	defer rows.Close()

	var results []model.ScoringResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		var sr model.ScoringResult
		if err := json.Unmarshal([]byte(resultJSON), &sr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal history")
		}
		results = append(results, sr)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: history iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var regionsJSON string
	var errMsg, skippedJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &regionsJSON, &r.Status, &errMsg, &skippedJSON, &r.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(regionsJSON), &r.Regions); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal regions")
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if skippedJSON.Valid && skippedJSON.String != "" {
		if err := json.Unmarshal([]byte(skippedJSON.String), &r.Skipped); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal skipped")
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
