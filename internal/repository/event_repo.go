package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"jammertime/internal/models"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

var _ EventRepo = (*EventSQLite)(nil)

// Re-uploading a reading for the same machine and start replaces it.
const upsertEventSQL = `
		INSERT INTO machine_events (machine_id, state, start_ns, end_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(machine_id, start_ns) DO UPDATE SET state = excluded.state, end_ns = excluded.end_ns
	`

const (
	selectMachinesSQL = `SELECT DISTINCT machine_id FROM machine_events ORDER BY machine_id`
	selectStatesSQL   = `SELECT DISTINCT state FROM machine_events ORDER BY state`
	selectRangeSQL    = `SELECT COUNT(*), COALESCE(MIN(start_ns), 0), COALESCE(MAX(end_ns), 0) FROM machine_events`
)

// InsertBatch stores events in one transaction and returns how many were written.
func (r *EventSQLite) InsertBatch(ctx context.Context, events []models.MachineEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin event batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx, e.MachineID, e.State, toNanos(e.Start), toNanos(e.End)); err != nil {
			return 0, fmt.Errorf("insert event #%d (%s @ %s): %w", i, e.MachineID, e.Start, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event batch: %w", err)
	}
	return len(events), nil
}

// List returns events intersecting [From, To), ordered by machine then start.
func (r *EventSQLite) List(ctx context.Context, f models.EventFilter) ([]models.MachineEvent, error) {
	var (
		conds []string
		args  []any
	)
	if m := strings.TrimSpace(f.MachineID); m != "" {
		conds = append(conds, "machine_id = ?")
		args = append(args, m)
	}
	if !f.From.IsZero() {
		conds = append(conds, "end_ns > ?")
		args = append(args, toNanos(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_ns < ?")
		args = append(args, toNanos(f.To))
	}

	q := `SELECT machine_id, state, start_ns, end_ns FROM machine_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY machine_id ASC, start_ns ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]models.MachineEvent, 0, 256)
	for rows.Next() {
		var (
			e          models.MachineEvent
			start, end int64
		)
		if err := rows.Scan(&e.MachineID, &e.State, &start, &end); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Start, e.End = fromNanos(start), fromNanos(end)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Registry summarizes the stored log without loading it.
func (r *EventSQLite) Registry(ctx context.Context) (models.Registry, error) {
	var reg models.Registry
	var err error
	if reg.Machines, err = r.column(ctx, selectMachinesSQL); err != nil {
		return reg, fmt.Errorf("list machines: %w", err)
	}
	if reg.States, err = r.column(ctx, selectStatesSQL); err != nil {
		return reg, fmt.Errorf("list states: %w", err)
	}
	var from, to int64
	if err := r.db.QueryRowContext(ctx, selectRangeSQL).Scan(&reg.Events, &from, &to); err != nil {
		return reg, fmt.Errorf("event range: %w", err)
	}
	reg.From, reg.To = fromNanos(from), fromNanos(to)
	return reg, nil
}

func (r *EventSQLite) column(ctx context.Context, q string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
