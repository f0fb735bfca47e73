package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"jammertime/internal/models"
)

const week = 7 * models.Day

// dayClock is a "<Weekday> HH:MM" cell.
type dayClock struct {
	day   time.Weekday
	clock models.Clock
}

func (d dayClock) inWeek() time.Duration {
	return time.Duration(d.day)*models.Day + time.Duration(d.clock)
}

// parseDayClock returns ok=false for empty and n/a cells.
func parseDayClock(s string) (dayClock, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "nan") {
		return dayClock{}, false, nil
	}
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return dayClock{}, false, fmt.Errorf("invalid schedule time %q: want \"<Weekday> HH:MM\"", s)
	}
	day, err := models.ParseWeekday(parts[0])
	if err != nil {
		return dayClock{}, false, err
	}
	clk, err := models.ParseClock(parts[1])
	if err != nil {
		return dayClock{}, false, err
	}
	return dayClock{day: day, clock: clk}, true, nil
}

// ReadScheduleCSV reads the shift table layout: Shift Code, Shift Start Time,
// Shift End Time and any number of Break/Lunch start-end column pairs. Each
// row is one shift on one weekday. Rows whose start is n/a are skipped.
func ReadScheduleCSV(r io.Reader, name string) (models.Schedule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return models.Schedule{}, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	var breakCols []int
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		col[h] = i
		if strings.Contains(h, "Break") || strings.Contains(h, "Lunch") {
			breakCols = append(breakCols, i)
		}
	}
	for _, need := range []string{"Shift Code", "Shift Start Time", "Shift End Time"} {
		if _, ok := col[need]; !ok {
			return models.Schedule{}, fmt.Errorf("missing %q column", need)
		}
	}

	sched := models.Schedule{Name: name}
	cell := func(rec []string, i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Schedule{}, fmt.Errorf("line %d: %w", line, err)
		}
		code := strings.TrimSpace(cell(rec, col["Shift Code"]))
		if code == "" {
			continue
		}
		start, ok, err := parseDayClock(cell(rec, col["Shift Start Time"]))
		if err != nil {
			return models.Schedule{}, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		end, ok, err := parseDayClock(cell(rec, col["Shift End Time"]))
		if err != nil {
			return models.Schedule{}, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			return models.Schedule{}, fmt.Errorf("line %d: shift %s has a start but no end", line, code)
		}
		length := (end.inWeek() - start.inWeek() + week) % week
		if length == 0 || length > models.Day {
			return models.Schedule{}, fmt.Errorf("line %d: shift %s must last between 0 and 24h", line, code)
		}
		def := models.ShiftDefinition{Code: code, Days: []time.Weekday{start.day}, Start: start.clock, End: end.clock}
		if def.Length() != length {
			return models.Schedule{}, fmt.Errorf("line %d: shift %s end day does not match its times", line, code)
		}
		sched.Shifts = append(sched.Shifts, def)

		for i := 0; i+1 < len(breakCols); i += 2 {
			bs, okS, err := parseDayClock(cell(rec, breakCols[i]))
			if err != nil {
				return models.Schedule{}, fmt.Errorf("line %d: %w", line, err)
			}
			be, okE, err := parseDayClock(cell(rec, breakCols[i+1]))
			if err != nil {
				return models.Schedule{}, fmt.Errorf("line %d: %w", line, err)
			}
			if !okS || !okE {
				continue
			}
			sched.Breaks = append(sched.Breaks, models.BreakWindow{
				ShiftCode: code,
				Days:      []time.Weekday{start.day},
				Offset:    (bs.inWeek() - start.inWeek() + week) % week,
				Duration:  (be.inWeek() - bs.inWeek() + week) % week,
			})
		}
	}
	return sched, nil
}
