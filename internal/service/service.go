package service

import (
	"context"
	"io"
	"time"

	"jammertime/internal/aggregate"
	"jammertime/internal/ingest"
	"jammertime/internal/logger"
	"jammertime/internal/models"
	"jammertime/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// EventLog stores uploaded machine logs and serves them back.
type EventLog interface {
	Import(ctx context.Context, r io.Reader) (models.Registry, error)
	List(ctx context.Context, f LogFilter) ([]models.MachineEvent, error)
	Registry(ctx context.Context) (models.Registry, error)
}

// Schedules stores validated shift calendars.
type Schedules interface {
	Create(ctx context.Context, name string, format ScheduleFormat, r io.Reader) (models.Schedule, error)
	Get(ctx context.Context, id string) (models.Schedule, error)
	List(ctx context.Context) ([]models.Schedule, error)
}

// Runs executes calculations asynchronously.
type Runs interface {
	Start(ctx context.Context, req RunRequest) (models.Run, error)
	Get(ctx context.Context, id string) (models.Run, error)
	Summary(ctx context.Context, id string) (aggregate.Summary, error)
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]models.Run, error)
	Close()
}

// Simulator fabricates machine logs for a calendar.
type Simulator interface {
	Generate(sched models.Schedule, p SimParams) ([]models.MachineEvent, error)
}

type Service struct {
	Runs
	Schedules
	EventLog
	Simulator
	Authorization
}

// Options carries the configuration the services need.
type Options struct {
	Calc       models.CalcConfig
	CSV        ingest.CSVOptions
	TimeZone   string
	SigningKey string
	TokenTTL   time.Duration
	Log        *logger.Logger
}

func NewService(repos *repository.Repository, opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	calc := NewCalculator(log.Named("calc"))
	return &Service{
		Runs:          NewRunService(repos.RunRepo, repos.ScheduleRepo, repos.EventRepo, calc, opts.Calc, log.Named("runs")),
		Schedules:     NewScheduleService(repos.ScheduleRepo, opts.TimeZone, log.Named("schedules")),
		EventLog:      NewEventLogService(repos.EventRepo, opts.CSV, log.Named("events")),
		Simulator:     NewSimulatorService(),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
	}
}
