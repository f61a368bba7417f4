package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	output_dir TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	thresholds TEXT NOT NULL,
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_days (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	date      TEXT NOT NULL,
	avg_score REAL NOT NULL,
	color     TEXT NOT NULL,
	PRIMARY KEY (run_id, date)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_days_date ON run_days(date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input, outputDir string, th scoring.Thresholds) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	thJSON, err := json.Marshal(th)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal thresholds")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, output_dir, status, thresholds, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, input, outputDir, string(model.RunStatusRunning), string(thJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

// CompleteRun stores the result and the run's day rows in one transaction.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO run_days (run_id, date, avg_score, color) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare run_days insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range dayRows(runID, result.Days) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert run day %v", row[1])
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run result")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errorText(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, input, output_dir, status, thresholds, result, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Input != "" {
		query += ` AND input = ?`
		args = append(args, filter.Input)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

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

func (s *SQLiteStore) DayHistory(ctx context.Context, date string, limit int) ([]DayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.run_id, r.created_at, d.date, d.avg_score, d.color
		FROM run_days d JOIN runs r ON r.id = d.run_id
		WHERE d.date = ?
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?`,
		date, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: day history %s", date)
	}
	defer rows.Close() //nolint:errcheck

	var out []DayRecord
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: day history iterate")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var thJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Input, &r.OutputDir, &r.Status, &thJSON, &resultJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRun(&r, []byte(thJSON), resultJSON.Valid, []byte(resultJSON.String)); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

func scanDay(row scannable) (*DayRecord, error) {
	var d DayRecord
	var color string
	if err := row.Scan(&d.RunID, &d.CreatedAt, &d.Date, &d.AvgScore, &color); err != nil {
		return nil, eris.Wrap(err, "store: scan day")
	}
	c, err := scoring.ParseColor(color)
	if err != nil {
		return nil, err
	}
	d.Color = c
	return &d, nil
}

// decodeRun fills the JSON-encoded columns shared by both backends.
func decodeRun(r *model.Run, thJSON []byte, hasResult bool, resultJSON []byte) error {
	if err := json.Unmarshal(thJSON, &r.Thresholds); err != nil {
		return eris.Wrap(err, "unmarshal thresholds")
	}
	if hasResult {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return eris.Wrap(err, "unmarshal result")
		}
	}
	return nil
}
