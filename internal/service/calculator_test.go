package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"jammertime/internal/annotate"
	"jammertime/internal/logger"
	"jammertime/internal/models"
	"jammertime/internal/schedule"
)

// exampleEvents puts each classic streak on its own machine.
func exampleEvents() []models.MachineEvent {
	return []models.MachineEvent{
		ev("M1", "ERROR", at(6, 2), at(6, 6)),
		ev("M1", "RUNNING", at(6, 6), at(8, 0)),

		ev("M2", "RUNNING", at(6, 0), at(11, 0)),
		ev("M2", "ERROR", at(11, 0), at(11, 20)),
		ev("M2", "RUNNING", at(11, 20), at(12, 0)),

		ev("M3", "RUNNING", at(6, 0), at(9, 40)),
		ev("M3", "ERROR", at(9, 40), at(11, 10)),
		ev("M3", "RUNNING", at(11, 10), at(12, 0)),

		ev("M4", "RUNNING", at(6, 0), at(12, 0)),
		ev("M4", "ERROR", at(12, 0), at(13, 10)),
		ev("M4", "RUNNING", at(13, 10), at(14, 0)),
	}
}

func TestCalculator_ExampleScenario(t *testing.T) {
	t.Parallel()

	sum, err := NewCalculator(logger.Nop()).Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Events:   exampleEvents(),
		Config:   models.DefaultCalcConfig(),
	})
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	if sum.Jams() != 1 || sum.JamsIn("A") != 1 {
		t.Fatalf("expected exactly one jam in shift A, got %d (%d)", sum.Jams(), sum.JamsIn("A"))
	}
	if got := sum.Duration("A", "ERROR"); got != 20*time.Minute {
		t.Fatalf("included error time = %s; want 20m", got)
	}
	want := map[models.ExclusionReason]time.Duration{
		models.ReasonRestartArtifact:    4 * time.Minute,
		models.ReasonBreakInterrupted:   90 * time.Minute,
		models.ReasonMaintenanceClosure: 70 * time.Minute,
	}
	for reason, d := range want {
		if got := sum.Excluded(reason); got != d {
			t.Fatalf("excluded %s = %s; want %s", reason, got, d)
		}
	}
	if got := len(sum.Machines()); got != 4 {
		t.Fatalf("expected 4 machines, got %d", got)
	}
}

func TestCalculator_RunningIntoShiftAndThroughBreak(t *testing.T) {
	t.Parallel()

	sum, err := NewCalculator(nil).Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Events: []models.MachineEvent{
			ev("M1", "RUNNING", at(5, 0), at(9, 0)),
			ev("M1", "ERROR", at(9, 0), at(9, 10)),
			ev("M1", "RUNNING", at(9, 10), at(11, 0)),
			ev("M1", "ERROR", at(11, 0), at(11, 20)),
			ev("M1", "RUNNING", at(11, 20), at(14, 0)),
		},
		Config: models.DefaultCalcConfig(),
	})
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if sum.Jams() != 2 {
		t.Fatalf("expected both stoppages to count as jams, got %d (exclusions %v)", sum.Jams(), sum.Exclusions())
	}
	if got := sum.Duration("A", "ERROR"); got != 30*time.Minute {
		t.Fatalf("included error time = %s; want 30m", got)
	}
	if got := sum.Excluded(models.ReasonRestartArtifact); got != 0 {
		t.Fatalf("no restart artifact expected, got %s", got)
	}
}

func TestCalculator_DeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	events := exampleEvents()
	// Interleave machines differently; per-machine order is kept.
	var interleaved []models.MachineEvent
	for i := len(events) - 1; i >= 0; i-- {
		interleaved = append(interleaved, events[i])
	}
	byMachine := map[string][]models.MachineEvent{}
	var order []string
	for _, e := range interleaved {
		if _, ok := byMachine[e.MachineID]; !ok {
			order = append(order, e.MachineID)
		}
		byMachine[e.MachineID] = append([]models.MachineEvent{e}, byMachine[e.MachineID]...)
	}
	var shuffled []models.MachineEvent
	for _, id := range order {
		shuffled = append(shuffled, byMachine[id]...)
	}

	var outputs [][]byte
	for _, tc := range []struct {
		workers int
		events  []models.MachineEvent
	}{
		{1, events},
		{8, events},
		{3, shuffled},
	} {
		cfg := models.DefaultCalcConfig()
		cfg.Workers = tc.workers
		sum, err := NewCalculator(nil).Calculate(context.Background(), CalcRequest{
			Schedule: dayShift(),
			Events:   tc.events,
			Config:   cfg,
		})
		if err != nil {
			t.Fatalf("workers=%d: %v", tc.workers, err)
		}
		b, err := json.Marshal(sum)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		outputs = append(outputs, b)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("summary %d differs:\n%s\n%s", i, outputs[0], outputs[i])
		}
	}
}

func TestCalculator_Progress(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []float64
	)
	cfg := models.DefaultCalcConfig()
	cfg.Workers = 2
	_, err := NewCalculator(nil).Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Events:   exampleEvents(),
		Config:   cfg,
		Progress: func(p float64) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	want := []float64{0.25, 0.5, 0.75, 1}
	if len(got) != len(want) {
		t.Fatalf("progress calls = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress calls = %v; want %v", got, want)
		}
	}
}

func TestCalculator_EmptyInput(t *testing.T) {
	t.Parallel()

	var last float64
	sum, err := NewCalculator(nil).Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Progress: func(p float64) { last = p },
	})
	if err != nil {
		t.Fatalf("empty input should not fail: %v", err)
	}
	if !sum.Empty() {
		t.Fatalf("expected empty summary")
	}
	if last != 1 {
		t.Fatalf("expected final progress 1, got %v", last)
	}
}

func TestCalculator_CanceledBetweenPartitions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := models.DefaultCalcConfig()
	cfg.Workers = 1
	calls := 0
	_, err := NewCalculator(nil).Calculate(ctx, CalcRequest{
		Schedule: dayShift(),
		Events:   exampleEvents(),
		Config:   cfg,
		Progress: func(float64) {
			calls++
			cancel()
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls >= 4 {
		t.Fatalf("expected the run to stop before every machine finished, got %d partitions", calls)
	}
}

func TestCalculator_Errors(t *testing.T) {
	t.Parallel()

	c := NewCalculator(nil)

	_, err := c.Calculate(context.Background(), CalcRequest{Schedule: models.Schedule{}})
	var conflict *schedule.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for an empty schedule, got %v", err)
	}

	_, err = c.Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Events: []models.MachineEvent{
			ev("M1", "RUNNING", at(7, 0), at(8, 0)),
			ev("M1", "IDLE", at(7, 30), at(9, 0)),
		},
	})
	var order *annotate.OrderError
	if !errors.As(err, &order) {
		t.Fatalf("expected OrderError, got %v", err)
	}

	reg := models.Registry{Machines: []string{"M1", "M2", "M3", "M4"}, States: []string{"RUNNING", "IDLE"}}
	_, err = c.Calculate(context.Background(), CalcRequest{
		Schedule: dayShift(),
		Events:   exampleEvents(),
		Registry: &reg,
	})
	if err == nil {
		t.Fatalf("expected registry validation to reject ERROR")
	}
}
