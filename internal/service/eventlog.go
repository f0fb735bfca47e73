package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"jammertime/internal/ingest"
	"jammertime/internal/logger"
	"jammertime/internal/metrics"
	"jammertime/internal/models"
	"jammertime/internal/repository"
)

const maxListLimit = 10000

// LogFilter narrows the stored event listing.
type LogFilter struct {
	MachineID string
	From      time.Time // inclusive; zero means no lower bound
	To        time.Time // exclusive; zero means no upper bound
	Limit     int
}

type EventLogService struct {
	eventRepo repository.EventRepo
	csv       ingest.CSVOptions
	log       *logger.Logger
}

// NewEventLogService uses opts for every import that does not override them.
func NewEventLogService(eventRepo repository.EventRepo, opts ingest.CSVOptions, log *logger.Logger) *EventLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogService{eventRepo: eventRepo, csv: opts, log: log}
}

// Import parses a machine CSV and stores its events. It returns the registry
// of the uploaded file.
func (s *EventLogService) Import(ctx context.Context, r io.Reader) (models.Registry, error) {
	events, err := ingest.ReadMachineCSV(r, s.csv)
	if err != nil {
		return models.Registry{}, fmt.Errorf("%w: parse machine csv: %w", ErrInvalidInput, err)
	}
	n, err := s.eventRepo.InsertBatch(ctx, events)
	if err != nil {
		return models.Registry{}, err
	}
	metrics.RecordEventsImported(n)
	reg := ingest.InferRegistry(events)
	s.log.Infow("events_imported", "events", n, "machines", len(reg.Machines), "states", len(reg.States))
	return reg, nil
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (models.EventFilter, error) {
	out := models.EventFilter{
		MachineID: strings.TrimSpace(f.MachineID),
		From:      normalizeToUTC(f.From),
		To:        normalizeToUTC(f.To),
		Limit:     f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return models.EventFilter{}, ErrInvalidTimeRange
	}
	if out.Limit <= 0 || out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	return out, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.MachineEvent, error) {
	filter, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}

func (s *EventLogService) Registry(ctx context.Context) (models.Registry, error) {
	return s.eventRepo.Registry(ctx)
}
