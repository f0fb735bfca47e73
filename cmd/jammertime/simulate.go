package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jammertime/internal/ingest"
	"jammertime/internal/service"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Generate a machine state log for a schedule",
		Example: `  jammertime simulate --schedule plant.yaml --machines 6 --days 7 --start 2025-03-03 --seed 42 --out log.csv`,
		Args:    cobra.NoArgs,
		RunE:    runSimulate,
	}
	f := cmd.Flags()
	f.String("schedule", "", "schedule file (.csv or .yaml)")
	f.Int("machines", 4, "number of machines")
	f.Int("days", 7, "days to simulate")
	f.String("start", "", "first day, YYYY-MM-DD in the schedule's zone")
	f.Uint64("seed", 1, "random seed; equal seeds give equal logs")
	f.Duration("step", 0, "reading interval (default 5m)")
	f.Float64("error-rate", 0, "share of steps that start an error streak (default 0.02)")
	f.Float64("idle-rate", 0, "share of steps spent idle (default 0.08)")
	f.String("out", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	app, log, err := loadApp(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	schedPath, _ := f.GetString("schedule")
	startStr, _ := f.GetString("start")
	outPath, _ := f.GetString("out")

	sched, err := readScheduleFile(schedPath, app.TimeZone)
	if err != nil {
		return err
	}
	loc, err := sched.Location()
	if err != nil {
		return err
	}
	start, err := time.ParseInLocation(time.DateOnly, startStr, loc)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}

	p := service.SimParams{Start: start, ErrorState: app.Calc.ErrorState}
	p.Machines, _ = f.GetInt("machines")
	p.Days, _ = f.GetInt("days")
	p.Seed, _ = f.GetUint64("seed")
	p.Step, _ = f.GetDuration("step")
	p.ErrorRate, _ = f.GetFloat64("error-rate")
	p.IdleRate, _ = f.GetFloat64("idle-rate")

	events, err := service.NewSimulatorService().Generate(sched, p)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := ingest.WriteMachineCSV(w, events, loc); err != nil {
		return err
	}
	log.Infow("simulation_written", "machines", p.Machines, "days", p.Days, "events", len(events), "out", outPath)
	return nil
}
