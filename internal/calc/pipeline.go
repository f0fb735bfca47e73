// Package calc runs the annotate, classify and aggregate stages over one
// machine partition.
package calc

import (
	"fmt"
	"sort"

	"jammertime/internal/aggregate"
	"jammertime/internal/annotate"
	"jammertime/internal/models"
	"jammertime/internal/schedule"
	"jammertime/internal/streak"
)

// Pipeline is immutable and may be shared by concurrent partitions.
type Pipeline struct {
	cfg        models.CalcConfig
	annotator  *annotate.Annotator
	classifier *streak.Classifier
}

func New(index *schedule.Index, cfg models.CalcConfig) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calculation config: %w", err)
	}
	return &Pipeline{
		cfg:        cfg,
		annotator:  annotate.New(index, cfg),
		classifier: streak.NewClassifier(cfg),
	}, nil
}

func (p *Pipeline) Config() models.CalcConfig { return p.cfg }

// Result is one machine's contribution to the final summary.
type Result struct {
	Summary  aggregate.MachineSummary
	Warnings []annotate.UnmappedEventWarning
	Streaks  []streak.Streak
}

// Machine processes the sorted events of a single machine.
func (p *Pipeline) Machine(id string, events []models.MachineEvent) (Result, error) {
	annotated, warnings, err := p.annotator.Annotate(events)
	if err != nil {
		return Result{}, err
	}
	streaks := p.classifier.Classify(annotated)
	return Result{
		Summary:  aggregate.Machine(id, p.cfg.ErrorState, annotated, streaks, warnings),
		Warnings: warnings,
		Streaks:  streaks,
	}, nil
}

// Partition groups events by machine, keeping their input order. Machine
// ids are returned sorted.
func Partition(events []models.MachineEvent) ([]string, map[string][]models.MachineEvent) {
	parts := make(map[string][]models.MachineEvent)
	for _, e := range events {
		parts[e.MachineID] = append(parts[e.MachineID], e)
	}
	ids := make([]string, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, parts
}
