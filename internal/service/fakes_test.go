package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jammertime/internal/models"
	"jammertime/internal/repository"
)

// fakeEventRepo is an in-memory repository.EventRepo.
type fakeEventRepo struct {
	mu sync.Mutex

	events    []models.MachineEvent
	err       error
	insertErr error
	reg       *models.Registry

	calls     int
	gotFilter models.EventFilter
	inserted  []models.MachineEvent
}

func (f *fakeEventRepo) InsertBatch(ctx context.Context, events []models.MachineEvent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, events...)
	return len(events), nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.MachineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []models.MachineEvent
	for _, e := range f.events {
		if filter.MachineID != "" && e.MachineID != filter.MachineID {
			continue
		}
		if !filter.From.IsZero() && !e.End.After(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Start.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) Registry(ctx context.Context) (models.Registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Registry{}, f.err
	}
	if f.reg != nil {
		return *f.reg, nil
	}
	return models.Registry{}, nil
}

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]models.Schedule
	created   []models.Schedule
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s models.Schedule) (models.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schedules == nil {
		f.schedules = make(map[string]models.Schedule)
	}
	s.ID = fmt.Sprintf("sched-%d", len(f.schedules)+1)
	f.schedules[s.ID] = s
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeScheduleRepo) Get(ctx context.Context, id string) (models.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return models.Schedule{}, fmt.Errorf("schedule %s: %w", id, repository.ErrNotFound)
	}
	return s, nil
}

func (f *fakeScheduleRepo) List(ctx context.Context) ([]models.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Schedule, 0, len(f.schedules))
	for _, s := range f.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRunRepo struct {
	mu      sync.Mutex
	runs    map[string]models.Run
	updates []models.Run
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]models.Run)}
}

func (f *fakeRunRepo) Create(ctx context.Context, r models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[r.ID] = r
	return nil
}

func (f *fakeRunRepo) Update(ctx context.Context, r models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[r.ID] = r
	f.updates = append(f.updates, r)
	return nil
}

func (f *fakeRunRepo) Get(ctx context.Context, id string) (models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return models.Run{}, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	return r, nil
}

func (f *fakeRunRepo) List(ctx context.Context, limit int) ([]models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Run, 0, len(f.runs))
	for _, r := range f.runs {
		r.Summary = nil
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// at returns a time on Monday 2025-03-03, UTC.
func at(hh, mm int) time.Time {
	return time.Date(2025, time.March, 3, hh, mm, 0, 0, time.UTC)
}

func dayShift() models.Schedule {
	return models.Schedule{
		Name: "day",
		Shifts: []models.ShiftDefinition{
			{Code: "A", Start: models.MustClock("06:00"), End: models.MustClock("14:00")},
		},
		Breaks: []models.BreakWindow{
			{ShiftCode: "A", Offset: 4 * time.Hour, Duration: 15 * time.Minute},
		},
	}
}

func ev(machine, state string, start, end time.Time) models.MachineEvent {
	return models.MachineEvent{MachineID: machine, State: state, Start: start, End: end}
}
