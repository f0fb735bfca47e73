package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jammertime/internal/models"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite { return &ScheduleSQLite{db: db} }

var _ ScheduleRepo = (*ScheduleSQLite)(nil)

const (
	insertScheduleSQL = `INSERT INTO schedules (id, name, definition, created_ns) VALUES (?, ?, ?, ?)`
	selectScheduleSQL = `SELECT id, name, definition, created_ns FROM schedules WHERE id = ?`
	listSchedulesSQL  = `SELECT id, name, definition, created_ns FROM schedules ORDER BY created_ns DESC, id ASC`
)

// Create assigns an id and creation time and stores s.
func (r *ScheduleSQLite) Create(ctx context.Context, s models.Schedule) (models.Schedule, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	def, err := json.Marshal(s)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("encode schedule: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, insertScheduleSQL, s.ID, s.Name, string(def), toNanos(s.CreatedAt)); err != nil {
		return models.Schedule{}, fmt.Errorf("insert schedule %q: %w", s.Name, err)
	}
	return s, nil
}

func (r *ScheduleSQLite) Get(ctx context.Context, id string) (models.Schedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx, selectScheduleSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return s, err
}

func (r *ScheduleSQLite) List(ctx context.Context) ([]models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, listSchedulesSQL)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	out := []models.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (models.Schedule, error) {
	var (
		s       models.Schedule
		id      string
		name    string
		def     string
		created int64
	)
	if err := row.Scan(&id, &name, &def, &created); err != nil {
		return models.Schedule{}, err
	}
	if err := json.Unmarshal([]byte(def), &s); err != nil {
		return models.Schedule{}, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	s.ID, s.Name, s.CreatedAt = id, name, fromNanos(created)
	return s, nil
}
