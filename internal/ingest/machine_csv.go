// Package ingest reads event logs and shift calendars from the file layouts
// used on the shop floor and infers the machine/state registry.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"jammertime/internal/models"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
}

// CSVOptions configures ReadMachineCSV. Zero values select the defaults.
type CSVOptions struct {
	TimeColumn string
	// Trailing is the duration given to the last reading of each machine.
	Trailing time.Duration
	// Location applies to timestamps without an explicit offset.
	Location *time.Location
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.TimeColumn == "" {
		o.TimeColumn = "Time"
	}
	if o.Trailing <= 0 {
		o.Trailing = models.DefaultTrailing
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// ParseTime parses a timestamp in any of the layouts the exporters produce.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type reading struct {
	at    time.Time
	state string
}

// ReadMachineCSV reads the wide layout: one time column plus one column per
// machine holding its state code. Each reading lasts until the machine's
// next reading; empty and NaN cells are skipped. Events come back grouped by
// machine in id order, sorted by start.
func ReadMachineCSV(r io.Reader, opts CSVOptions) ([]models.MachineEvent, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	timeCol := -1
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if h == "" {
			continue
		}
		if seen[h] {
			return nil, fmt.Errorf("line 1: duplicate column %q", h)
		}
		seen[h] = true
		if h == opts.TimeColumn {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("missing %q column", opts.TimeColumn)
	}

	readings := make(map[string][]reading)
	var prev time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if timeCol >= len(rec) || strings.TrimSpace(rec[timeCol]) == "" {
			continue
		}
		ts, err := ParseTime(rec[timeCol], opts.Location)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ts.Before(prev) {
			return nil, fmt.Errorf("line %d: timestamp %s goes backwards", line, ts.Format(time.RFC3339))
		}
		prev = ts
		for i, cell := range rec {
			if i == timeCol || i >= len(header) || header[i] == "" {
				continue
			}
			state := strings.TrimSpace(cell)
			if state == "" || strings.EqualFold(state, "nan") {
				continue
			}
			readings[header[i]] = append(readings[header[i]], reading{at: ts, state: state})
		}
	}

	machines := make([]string, 0, len(readings))
	for id := range readings {
		machines = append(machines, id)
	}
	sort.Strings(machines)

	var events []models.MachineEvent
	for _, id := range machines {
		rs := readings[id]
		for i, rd := range rs {
			end := rd.at.Add(opts.Trailing)
			if i+1 < len(rs) {
				end = rs[i+1].at
			}
			events = append(events, models.MachineEvent{
				MachineID: id,
				State:     rd.state,
				Start:     rd.at.UTC(),
				End:       end.UTC(),
			})
		}
	}
	return events, nil
}

// WriteMachineCSV writes events in the wide layout. Only event starts are
// kept; the reader reconstructs ends from the following reading.
func WriteMachineCSV(w io.Writer, events []models.MachineEvent, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	machineSet := make(map[string]bool)
	rows := make(map[int64]map[string]string)
	for _, e := range events {
		machineSet[e.MachineID] = true
		k := e.Start.UnixNano()
		if rows[k] == nil {
			rows[k] = make(map[string]string)
		}
		rows[k][e.MachineID] = e.State
	}
	machines := make([]string, 0, len(machineSet))
	for id := range machineSet {
		machines = append(machines, id)
	}
	sort.Strings(machines)
	stamps := make([]int64, 0, len(rows))
	for k := range rows {
		stamps = append(stamps, k)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Time"}, machines...)); err != nil {
		return err
	}
	rec := make([]string, len(machines)+1)
	for _, k := range stamps {
		rec[0] = time.Unix(0, k).In(loc).Format("2006-01-02 15:04:05")
		for i, id := range machines {
			rec[i+1] = rows[k][id]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
