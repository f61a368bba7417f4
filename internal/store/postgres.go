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

	"github.com/sells-group/puff-cli/internal/db"
	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// A CLI holds few connections; these are upper bounds only.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	input      TEXT NOT NULL,
	output_dir TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	thresholds JSONB NOT NULL,
	result     JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_days (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	date      DATE NOT NULL,
	avg_score DOUBLE PRECISION NOT NULL,
	color     TEXT NOT NULL,
	PRIMARY KEY (run_id, date)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_days_date ON run_days(date);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

func (s *PostgresStore) CreateRun(ctx context.Context, input, outputDir string, th scoring.Thresholds) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	thJSON, err := json.Marshal(th)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal thresholds")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, output_dir, status, thresholds, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, input, outputDir, string(model.RunStatusRunning), thJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:         id,
		Input:      input,
		OutputDir:  outputDir,
		Status:     model.RunStatusRunning,
		Thresholds: th,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CompleteRun stores the result and bulk-copies the day rows in one
// transaction.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}

	rows := dayRows(runID, result.Days)
	for _, row := range rows {
		// DATE column; COPY needs a typed value.
		d, err := time.Parse(time.DateOnly, row[1].(string))
		if err != nil {
			return eris.Wrapf(err, "postgres: parse day %v", row[1])
		}
		row[1] = d
	}
	if _, err := db.CopyFrom(ctx, tx, "run_days", dayColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy run days")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run result")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errorText(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, input, output_dir, status, thresholds, result, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Input != "" {
		query += fmt.Sprintf(` AND input = $%d`, argIdx)
		args = append(args, filter.Input)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
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
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DayHistory(ctx context.Context, date string, limit int) ([]DayRecord, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: parse date %q", date)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT d.run_id, r.created_at, to_char(d.date, 'YYYY-MM-DD'), d.avg_score, d.color
		FROM run_days d JOIN runs r ON r.id = d.run_id
		WHERE d.date = $1
		ORDER BY r.created_at DESC
		LIMIT $2`,
		day, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: day history %s", date)
	}
	defer rows.Close()

	var out []DayRecord
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: day history iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var thJSON []byte
	var resultNull *[]byte

	if err := row.Scan(&r.ID, &r.Input, &r.OutputDir, &r.Status, &thJSON, &resultNull, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	var resultJSON []byte
	if resultNull != nil {
		resultJSON = *resultNull
	}
	if err := decodeRun(&r, thJSON, resultNull != nil, resultJSON); err != nil {
		return nil, eris.Wrap(err, "postgres: decode run")
	}
	return &r, nil
}
