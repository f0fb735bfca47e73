package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"jammertime/internal/aggregate"
	"jammertime/internal/calc"
	"jammertime/internal/ingest"
	"jammertime/internal/logger"
	"jammertime/internal/metrics"
	"jammertime/internal/models"
	"jammertime/internal/schedule"
	"jammertime/internal/streak"
)

// CalcRequest is the input of one calculation.
type CalcRequest struct {
	Schedule models.Schedule
	// Events must be sorted by start within each machine.
	Events []models.MachineEvent
	Config models.CalcConfig
	// Registry, when set, rejects events naming unknown machines or states
	// before any partition runs.
	Registry *models.Registry
	// Progress receives the fraction of machines done. Calls are serialized.
	Progress func(float64)
}

// Calculator maps the calculation pipeline over machine partitions and
// reduces the partial summaries in machine id order.
type Calculator struct {
	log *logger.Logger
}

func NewCalculator(log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	return &Calculator{log: log}
}

// Calculate returns ctx.Err() when canceled. Cancellation is observed
// between partitions only.
func (c *Calculator) Calculate(ctx context.Context, req CalcRequest) (aggregate.Summary, error) {
	idx, err := schedule.New(req.Schedule)
	if err != nil {
		return aggregate.Summary{}, err
	}
	p, err := calc.New(idx, req.Config)
	if err != nil {
		return aggregate.Summary{}, err
	}
	if req.Registry != nil {
		if err := ingest.ValidateAgainst(*req.Registry, req.Events); err != nil {
			return aggregate.Summary{}, fmt.Errorf("validate events: %w", err)
		}
	}

	ids, parts := calc.Partition(req.Events)
	results := make([]calc.Result, len(ids))

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		if req.Progress != nil {
			req.Progress(float64(done) / float64(len(ids)))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Config().Workers)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Machine(id, parts[id])
			if err != nil {
				return fmt.Errorf("machine %s: %w", id, err)
			}
			results[i] = res
			metrics.RecordPartition(len(parts[id]), len(res.Warnings), outcomes(res.Streaks))
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return aggregate.Summary{}, err
	}
	// A cancel that lands after the last partition was scheduled still wins.
	if err := ctx.Err(); err != nil {
		return aggregate.Summary{}, err
	}

	b := aggregate.NewBuilder(p.Config().ErrorState)
	for _, res := range results {
		b.Add(res.Summary, res.Warnings...)
	}
	sum := b.Finish()

	if len(ids) == 0 && req.Progress != nil {
		req.Progress(1)
	}
	if n := sum.UnmappedEvents(); n > 0 {
		c.log.Warnw("unmapped_events", "count", n, "machines", len(ids))
	}
	c.log.Debugw("calculation_done", "machines", len(ids), "events", sum.Events(), "jams", sum.Jams())
	return sum, nil
}

func outcomes(streaks []streak.Streak) map[string]int {
	out := make(map[string]int, 4)
	for _, s := range streaks {
		if s.Included() {
			out[metrics.OutcomeIncluded]++
			continue
		}
		out[string(s.Reason)]++
	}
	return out
}
