package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"jammertime/internal/models"
)

type RunSQLite struct {
	db *sql.DB
}

func NewRunSQLite(db *sql.DB) *RunSQLite { return &RunSQLite{db: db} }

var _ RunRepo = (*RunSQLite)(nil)

const (
	insertRunSQL = `
		INSERT INTO runs (id, schedule_id, status, progress, from_ns, to_ns, config, summary, error, created_ns, finished_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	updateRunSQL = `
		UPDATE runs SET status = ?, progress = ?, summary = ?, error = ?, finished_ns = ?
		WHERE id = ?
	`
	selectRunColumns = `SELECT id, schedule_id, status, progress, from_ns, to_ns, config, summary, error, created_ns, finished_ns FROM runs`
	selectRunSQL     = selectRunColumns + ` WHERE id = ?`
	listRunsSQL      = selectRunColumns + ` ORDER BY created_ns DESC, id ASC LIMIT ?`
)

const defaultRunListLimit = 50

func (r *RunSQLite) Create(ctx context.Context, run models.Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.ScheduleID,
		string(run.Status),
		run.Progress,
		toNanos(run.From),
		toNanos(run.To),
		string(cfg),
		nullableText(run.Summary),
		run.Error,
		toNanos(run.CreatedAt),
		finishedNanos(run),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update persists the mutable part of a run: status, progress, result.
func (r *RunSQLite) Update(ctx context.Context, run models.Run) error {
	res, err := r.db.ExecContext(ctx, updateRunSQL,
		string(run.Status),
		run.Progress,
		nullableText(run.Summary),
		run.Error,
		finishedNanos(run),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (r *RunSQLite) Get(ctx context.Context, id string) (models.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

func (r *RunSQLite) List(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		// listings stay light; fetch a single run for its summary
		run.Summary = nil
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (models.Run, error) {
	var (
		run               models.Run
		status, cfg       string
		summary           sql.NullString
		from, to, created int64
		finished          sql.NullInt64
	)
	err := row.Scan(&run.ID, &run.ScheduleID, &status, &run.Progress, &from, &to, &cfg, &summary, &run.Error, &created, &finished)
	if err != nil {
		return models.Run{}, err
	}
	run.Status = models.RunStatus(status)
	run.From, run.To, run.CreatedAt = fromNanos(from), fromNanos(to), fromNanos(created)
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
			return models.Run{}, fmt.Errorf("decode run %s config: %w", run.ID, err)
		}
	}
	if summary.Valid && summary.String != "" {
		run.Summary = json.RawMessage(summary.String)
	}
	if finished.Valid && finished.Int64 != 0 {
		t := fromNanos(finished.Int64)
		run.FinishedAt = &t
	}
	return run, nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func finishedNanos(run models.Run) any {
	if run.FinishedAt == nil {
		return nil
	}
	return toNanos(*run.FinishedAt)
}
