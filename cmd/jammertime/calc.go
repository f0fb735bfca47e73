package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jammertime/internal/aggregate"
	"jammertime/internal/config"
	"jammertime/internal/ingest"
	"jammertime/internal/models"
	"jammertime/internal/render"
	"jammertime/internal/service"
)

// calcFlags maps command-line overrides onto config keys.
var calcFlags = []struct {
	name, key, usage string
}{
	{"error-state", "calc.error_state", "state code that marks a jam"},
	{"max-jam", "calc.max_jam_duration", "error streaks longer than this are maintenance closures"},
	{"idle-threshold", "calc.idle_threshold", "gap or idle time that counts as a machine restart"},
	{"shift-start-grace", "calc.shift_start_grace", "window after shift start treated as a restart"},
	{"break-end-grace", "calc.break_end_grace", "window after break end treated as a restart"},
	{"trailing", "calc.trailing_duration", "duration of each machine's last reading"},
	{"location", "calc.location", "IANA zone for timestamps without an offset"},
}

func newCalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Summarize a machine log against a schedule",
		Example: `  jammertime calc --schedule shifts.csv --machines machines.csv
  jammertime calc --schedule plant.yaml --machines log.csv --json
  jammertime calc --schedule plant.yaml --machines log.csv --watch`,
		Args: cobra.NoArgs,
		RunE: runCalc,
	}
	f := cmd.Flags()
	f.String("schedule", "", "schedule file (.csv or .yaml)")
	f.String("machines", "", "machine state CSV")
	f.Bool("json", false, "print the summary as JSON")
	f.Bool("watch", false, "recalculate when either file changes")
	f.Int("workers", 0, "machine partitions processed in parallel")
	f.StringSlice("precedence", nil, "exclusion rule order, first match wins")
	for _, cf := range calcFlags {
		f.String(cf.name, "", cf.usage)
		_ = viper.BindPFlag(cf.key, f.Lookup(cf.name))
	}
	_ = viper.BindPFlag("calc.workers", f.Lookup("workers"))
	_ = viper.BindPFlag("calc.precedence", f.Lookup("precedence"))
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("machines")
	return cmd
}

func runCalc(cmd *cobra.Command, args []string) error {
	app, log, err := loadApp(cmd)
	if err != nil {
		return err
	}
	schedPath, _ := cmd.Flags().GetString("schedule")
	machinesPath, _ := cmd.Flags().GetString("machines")
	asJSON, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	calc := service.NewCalculator(log.Named("calc"))
	once := func() error {
		return calcFiles(ctx, calc, app, schedPath, machinesPath, out, asJSON)
	}
	if !watch {
		return once()
	}

	if err := once(); err != nil {
		log.Errorw("calculation_failed", "err", err)
	}
	return ingest.Watch(ctx, log.Named("watch"), []string{schedPath, machinesPath}, func() {
		fmt.Fprintf(out, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
		if err := once(); err != nil {
			log.Errorw("calculation_failed", "err", err)
		}
	})
}

func calcFiles(ctx context.Context, calc *service.Calculator, app config.App, schedPath, machinesPath string, out io.Writer, asJSON bool) error {
	sched, err := readScheduleFile(schedPath, app.TimeZone)
	if err != nil {
		return err
	}
	loc, err := app.Location()
	if err != nil {
		return err
	}
	events, err := readEventsFile(machinesPath, ingestOptions(app, loc))
	if err != nil {
		return err
	}
	sum, err := calc.Calculate(ctx, service.CalcRequest{Schedule: sched, Events: events, Config: app.Calc})
	if err != nil {
		return err
	}
	return writeSummary(out, sum, asJSON)
}

func writeSummary(out io.Writer, sum aggregate.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	render.WriteTree(out, sum)
	fmt.Fprintln(out)
	render.WriteTable(out, sum)
	if sum.UnmappedEvents() > 0 {
		fmt.Fprintln(out)
		render.WriteWarnings(out, sum)
	}
	return nil
}

// readScheduleFile parses a schedule named after its file. defaultTZ applies
// when the file does not set a location.
func readScheduleFile(path, defaultTZ string) (models.Schedule, error) {
	format, err := service.FormatFromFilename(path)
	if err != nil {
		return models.Schedule{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return models.Schedule{}, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sched, err := service.ParseSchedule(f, format, name)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%s: %w", path, err)
	}
	if sched.TimeZone == "" {
		sched.TimeZone = defaultTZ
	}
	return sched, nil
}

func readEventsFile(path string, opts ingest.CSVOptions) ([]models.MachineEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := ingest.ReadMachineCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func ingestOptions(app config.App, loc *time.Location) ingest.CSVOptions {
	return ingest.CSVOptions{Trailing: app.Trailing, Location: loc}
}
