package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jammertime/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned by Authorization.Create for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type EventRepo interface {
	InsertBatch(ctx context.Context, events []models.MachineEvent) (int, error)
	List(ctx context.Context, f models.EventFilter) ([]models.MachineEvent, error)
	Registry(ctx context.Context) (models.Registry, error)
}

type ScheduleRepo interface {
	Create(ctx context.Context, s models.Schedule) (models.Schedule, error)
	Get(ctx context.Context, id string) (models.Schedule, error)
	List(ctx context.Context) ([]models.Schedule, error)
}

type RunRepo interface {
	Create(ctx context.Context, r models.Run) error
	Update(ctx context.Context, r models.Run) error
	Get(ctx context.Context, id string) (models.Run, error)
	List(ctx context.Context, limit int) ([]models.Run, error)
}

type Repository struct {
	EventRepo    EventRepo
	ScheduleRepo ScheduleRepo
	RunRepo      RunRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:    NewEventSQLite(db),
		ScheduleRepo: NewScheduleSQLite(db),
		RunRepo:      NewRunSQLite(db),
		Auth:         NewUserRepository(db),
	}
}

// Timestamps are stored as UTC unix nanoseconds so that ordering and range
// filters are plain integer comparisons.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
