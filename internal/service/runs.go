package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jammertime/internal/aggregate"
	"jammertime/internal/logger"
	"jammertime/internal/metrics"
	"jammertime/internal/models"
	"jammertime/internal/repository"
	"jammertime/internal/schedule"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunFinished      = errors.New("run already finished")
	ErrRunNotReady      = errors.New("run has no summary yet")
	ErrInvalidTimeRange = errors.New("invalid time range: from must be before to")
	// ErrInvalidInput marks errors caused by the caller's data rather than
	// by storage.
	ErrInvalidInput = errors.New("invalid input")
)

const persistTimeout = 5 * time.Second

// RunRequest starts a calculation over the stored event log. Zero config
// fields fall back to the service defaults.
type RunRequest struct {
	ScheduleID string            `json:"schedule_id" binding:"required"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Config     models.CalcConfig `json:"config"`
	// ValidateRegistry rejects the run when stored events name states
	// outside the inferred registry.
	ValidateRegistry bool `json:"validate_registry"`
}

type activeRun struct {
	run    models.Run
	cancel context.CancelFunc
}

// RunService executes calculations in background goroutines. Runs in
// flight live in memory; their final state is persisted.
type RunService struct {
	runs      repository.RunRepo
	schedules repository.ScheduleRepo
	events    repository.EventRepo
	calc      *Calculator
	defaults  models.CalcConfig
	log       *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	active map[string]*activeRun
	wg     sync.WaitGroup
}

func NewRunService(runs repository.RunRepo, schedules repository.ScheduleRepo, events repository.EventRepo,
	calc *Calculator, defaults models.CalcConfig, log *logger.Logger) *RunService {
	if log == nil {
		log = logger.Nop()
	}
	return &RunService{
		runs:      runs,
		schedules: schedules,
		events:    events,
		calc:      calc,
		defaults:  defaults.WithDefaults(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		active:    make(map[string]*activeRun),
	}
}

// Start validates the request, persists a pending run and returns it. The
// calculation continues after ctx is done; use Cancel to stop it.
func (s *RunService) Start(ctx context.Context, req RunRequest) (models.Run, error) {
	from, to := normalizeToUTC(req.From), normalizeToUTC(req.To)
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return models.Run{}, ErrInvalidTimeRange
	}
	cfg := mergeConfig(s.defaults, req.Config)
	if err := cfg.Validate(); err != nil {
		return models.Run{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	sched, err := s.schedules.Get(ctx, req.ScheduleID)
	if err != nil {
		return models.Run{}, err
	}
	if _, err := schedule.New(sched); err != nil {
		return models.Run{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	run := models.Run{
		ID:         uuid.NewString(),
		ScheduleID: sched.ID,
		Status:     models.RunPending,
		From:       from,
		To:         to,
		Config:     cfg,
		CreatedAt:  s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return models.Run{}, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.active[run.ID] = &activeRun{run: run, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(runCtx, run, sched, req.ValidateRegistry)
	}()
	return run, nil
}

func (s *RunService) execute(ctx context.Context, run models.Run, sched models.Schedule, validate bool) {
	started := time.Now()
	metrics.RecordRunStarted()
	log := s.log.With("run_id", run.ID, "schedule_id", run.ScheduleID)

	s.update(run.ID, func(r *models.Run) { r.Status = models.RunRunning })
	if err := s.runs.Update(ctx, s.snapshot(run.ID)); err != nil {
		log.Warnw("run_update_failed", "err", err)
	}
	log.Infow("run_started", "from", run.From, "to", run.To)

	sum, err := s.calculate(ctx, run, sched, validate)

	final := s.snapshot(run.ID)
	finished := s.now()
	final.FinishedAt = &finished
	switch {
	case err == nil:
		final.Status = models.RunSucceeded
		final.Progress = 1
		final.Summary, err = json.Marshal(sum)
		if err != nil {
			final.Status = models.RunFailed
			final.Error = fmt.Sprintf("encode summary: %v", err)
		}
	case errors.Is(err, context.Canceled):
		final.Status = models.RunCanceled
		final.Error = "canceled"
	default:
		final.Status = models.RunFailed
		final.Error = err.Error()
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if perr := s.runs.Update(pctx, final); perr != nil {
		log.Errorw("run_persist_failed", "err", perr)
	}

	s.mu.Lock()
	delete(s.active, run.ID)
	s.mu.Unlock()

	metrics.RecordRunFinished(string(final.Status), time.Since(started))
	if final.Status == models.RunFailed {
		log.Errorw("run_failed", "err", final.Error)
		return
	}
	log.Infow("run_finished", "status", final.Status, "took", time.Since(started))
}

func (s *RunService) calculate(ctx context.Context, run models.Run, sched models.Schedule, validate bool) (aggregate.Summary, error) {
	events, err := s.events.List(ctx, models.EventFilter{From: run.From, To: run.To})
	if err != nil {
		return aggregate.Summary{}, err
	}
	events = clipEvents(events, run.From, run.To)

	req := CalcRequest{
		Schedule: sched,
		Events:   events,
		Config:   run.Config,
		Progress: func(p float64) {
			s.update(run.ID, func(r *models.Run) { r.Progress = p })
		},
	}
	if validate {
		reg, err := s.events.Registry(ctx)
		if err != nil {
			return aggregate.Summary{}, err
		}
		req.Registry = &reg
	}
	return s.calc.Calculate(ctx, req)
}

// Get returns the live state of an in-flight run, or the stored one.
func (s *RunService) Get(ctx context.Context, id string) (models.Run, error) {
	s.mu.Lock()
	if a, ok := s.active[id]; ok {
		r := a.run
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	r, err := s.runs.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Run{}, ErrRunNotFound
	}
	return r, err
}

// Summary decodes the stored summary of a succeeded run.
func (s *RunService) Summary(ctx context.Context, id string) (aggregate.Summary, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return aggregate.Summary{}, err
	}
	if r.Status != models.RunSucceeded || len(r.Summary) == 0 {
		return aggregate.Summary{}, ErrRunNotReady
	}
	var sum aggregate.Summary
	if err := json.Unmarshal(r.Summary, &sum); err != nil {
		return aggregate.Summary{}, fmt.Errorf("decode summary of run %s: %w", id, err)
	}
	return sum, nil
}

// Cancel stops an in-flight run. The run is marked canceled once its current
// partition finishes.
func (s *RunService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	a, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		a.cancel()
		s.log.Infow("run_cancel_requested", "run_id", id)
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrRunFinished
}

// List returns the most recent runs without summaries.
func (s *RunService) List(ctx context.Context, limit int) ([]models.Run, error) {
	list, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range list {
		if a, ok := s.active[list[i].ID]; ok {
			list[i].Status = a.run.Status
			list[i].Progress = a.run.Progress
		}
	}
	return list, nil
}

// Close cancels every in-flight run and waits for them to persist.
func (s *RunService) Close() {
	s.mu.Lock()
	for _, a := range s.active {
		a.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *RunService) update(id string, fn func(*models.Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.active[id]; ok {
		fn(&a.run)
	}
}

func (s *RunService) snapshot(id string) models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id].run
}

// mergeConfig overlays the non-zero fields of over onto base.
func mergeConfig(base, over models.CalcConfig) models.CalcConfig {
	out := base
	if over.ErrorState != "" {
		out.ErrorState = over.ErrorState
	}
	if len(over.RunningStates) > 0 {
		out.RunningStates = append([]string(nil), over.RunningStates...)
	}
	if over.MaxJamDuration != 0 {
		out.MaxJamDuration = over.MaxJamDuration
	}
	if over.IdleThreshold != 0 {
		out.IdleThreshold = over.IdleThreshold
	}
	if over.ShiftStartGrace != 0 {
		out.ShiftStartGrace = over.ShiftStartGrace
	}
	if over.BreakEndGrace != 0 {
		out.BreakEndGrace = over.BreakEndGrace
	}
	if len(over.Precedence) > 0 {
		out.Precedence = append([]models.ExclusionReason(nil), over.Precedence...)
	}
	if over.Workers != 0 {
		out.Workers = over.Workers
	}
	return out.WithDefaults()
}

// clipEvents trims events to [from, to). Zero bounds are open.
func clipEvents(events []models.MachineEvent, from, to time.Time) []models.MachineEvent {
	out := events[:0]
	for _, e := range events {
		if !from.IsZero() && e.Start.Before(from) {
			e.Start = from
		}
		if !to.IsZero() && e.End.After(to) {
			e.End = to
		}
		if e.End.Before(e.Start) {
			continue
		}
		out = append(out, e)
	}
	return out
}
