package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"jammertime/internal/models"
	"jammertime/internal/schedule"
)

// States emitted by the simulator besides the configured error state.
const (
	StateRunning = "RUNNING"
	StateIdle    = "IDLE"
	StateOff     = "OFF"
)

const (
	defaultSimStep      = 5 * time.Minute
	defaultSimErrorRate = 0.02
	defaultSimIdleRate  = 0.08
	maxSimJam           = 90 * time.Minute
)

// SimParams controls synthetic event generation. Zero values select the
// defaults.
type SimParams struct {
	Machines   int
	Start      time.Time
	Days       int
	Seed       uint64
	Step       time.Duration
	ErrorRate  float64
	IdleRate   float64
	ErrorState string
}

func (p SimParams) withDefaults() SimParams {
	if p.Machines <= 0 {
		p.Machines = 1
	}
	if p.Days <= 0 {
		p.Days = 1
	}
	if p.Step <= 0 {
		p.Step = defaultSimStep
	}
	if p.ErrorRate <= 0 {
		p.ErrorRate = defaultSimErrorRate
	}
	if p.IdleRate <= 0 {
		p.IdleRate = defaultSimIdleRate
	}
	if p.ErrorState == "" {
		p.ErrorState = models.DefaultErrorState
	}
	return p
}

// SimulatorService fabricates plausible machine logs against a calendar:
// machines are OFF outside shifts, IDLE during breaks and mostly RUNNING
// otherwise, with random error streaks of up to maxSimJam.
type SimulatorService struct{}

func NewSimulatorService() *SimulatorService { return &SimulatorService{} }

// Generate is deterministic for a given schedule and params.
func (s *SimulatorService) Generate(sched models.Schedule, p SimParams) ([]models.MachineEvent, error) {
	p = p.withDefaults()
	if p.Start.IsZero() {
		return nil, errors.New("simulation start is required")
	}
	if p.ErrorRate+p.IdleRate >= 1 {
		return nil, fmt.Errorf("error rate %.2f plus idle rate %.2f must stay below 1", p.ErrorRate, p.IdleRate)
	}
	idx, err := schedule.New(sched)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x6a616d6d))
	end := p.Start.Add(time.Duration(p.Days) * models.Day)
	var events []models.MachineEvent
	for m := 1; m <= p.Machines; m++ {
		events = append(events, s.machine(idx, rng, fmt.Sprintf("M%02d", m), p, end)...)
	}
	return events, nil
}

func (s *SimulatorService) machine(idx *schedule.Index, rng *rand.Rand, id string, p SimParams, end time.Time) []models.MachineEvent {
	var out []models.MachineEvent
	for t := p.Start; t.Before(end); {
		state, d := s.next(idx, rng, t, p)
		stop := t.Add(d)
		if stop.After(end) {
			stop = end
		}
		if n := len(out); n > 0 && out[n-1].State == state {
			out[n-1].End = stop.UTC()
		} else {
			out = append(out, models.MachineEvent{MachineID: id, State: state, Start: t.UTC(), End: stop.UTC()})
		}
		t = stop
	}
	return out
}

func (s *SimulatorService) next(idx *schedule.Index, rng *rand.Rand, t time.Time, p SimParams) (string, time.Duration) {
	_, onShift, inBreak := idx.Lookup(t)
	switch {
	case !onShift:
		return StateOff, p.Step
	case inBreak:
		return StateIdle, p.Step
	}
	r := rng.Float64()
	switch {
	case r < p.ErrorRate:
		return p.ErrorState, time.Duration(1+rng.Int64N(int64(maxSimJam/time.Minute))) * time.Minute
	case r < p.ErrorRate+p.IdleRate:
		return StateIdle, p.Step
	default:
		return StateRunning, p.Step
	}
}
