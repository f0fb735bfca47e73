package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"jammertime/internal/ingest"
	"jammertime/internal/logger"
	"jammertime/internal/models"
	"jammertime/internal/repository"
	"jammertime/internal/schedule"
)

type ScheduleFormat string

const (
	ScheduleCSV  ScheduleFormat = "csv"
	ScheduleYAML ScheduleFormat = "yaml"
)

// FormatFromFilename picks the schedule parser by file extension.
func FormatFromFilename(name string) (ScheduleFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ScheduleCSV, nil
	case ".yaml", ".yml":
		return ScheduleYAML, nil
	default:
		return "", fmt.Errorf("unsupported schedule file %q: want .csv, .yaml or .yml", name)
	}
}

// ParseSchedule reads a calendar and checks it for conflicts.
func ParseSchedule(r io.Reader, format ScheduleFormat, name string) (models.Schedule, error) {
	var (
		s   models.Schedule
		err error
	)
	switch format {
	case ScheduleCSV:
		s, err = ingest.ReadScheduleCSV(r, name)
	case ScheduleYAML:
		s, err = ingest.ReadScheduleYAML(r)
	default:
		return models.Schedule{}, fmt.Errorf("unsupported schedule format %q", format)
	}
	if err != nil {
		return models.Schedule{}, err
	}
	if name != "" {
		s.Name = name
	}
	if _, err := schedule.New(s); err != nil {
		return models.Schedule{}, err
	}
	return s, nil
}

type ScheduleService struct {
	repo     repository.ScheduleRepo
	timeZone string
	log      *logger.Logger
}

// NewScheduleService applies timeZone to uploaded schedules that name none.
func NewScheduleService(repo repository.ScheduleRepo, timeZone string, log *logger.Logger) *ScheduleService {
	if log == nil {
		log = logger.Nop()
	}
	return &ScheduleService{repo: repo, timeZone: timeZone, log: log}
}

func (s *ScheduleService) Create(ctx context.Context, name string, format ScheduleFormat, r io.Reader) (models.Schedule, error) {
	sched, err := ParseSchedule(r, format, name)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if sched.TimeZone == "" {
		sched.TimeZone = s.timeZone
	}
	if _, err := sched.Location(); err != nil {
		return models.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	saved, err := s.repo.Create(ctx, sched)
	if err != nil {
		return models.Schedule{}, err
	}
	s.log.Infow("schedule_created", "id", saved.ID, "name", saved.Name, "shifts", len(saved.Shifts), "breaks", len(saved.Breaks))
	return saved, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (models.Schedule, error) {
	return s.repo.Get(ctx, id)
}

func (s *ScheduleService) List(ctx context.Context) ([]models.Schedule, error) {
	return s.repo.List(ctx)
}
