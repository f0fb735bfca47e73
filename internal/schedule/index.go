// Package schedule compiles a shift calendar into concrete shift and break
// instances and answers time lookups against them.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"jammertime/internal/models"
)

const week = 7 * models.Day

// ConflictError reports an inconsistent schedule.
type ConflictError struct {
	Shift  string
	Other  string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("schedule conflict: shift %q and %q: %s", e.Shift, e.Other, e.Reason)
	}
	return fmt.Sprintf("schedule conflict: shift %q: %s", e.Shift, e.Reason)
}

// Window is a concrete half-open time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Instance is one concrete occurrence of a shift.
type Instance struct {
	Code   string
	Start  time.Time
	End    time.Time
	Breaks []Window

	// Stoppage is true when no shift instance begins at End.
	Stoppage bool
	// PrecedingGap is the off-schedule span before Start. Zero when the
	// previous instance ends exactly at Start.
	PrecedingGap time.Duration
}

func (in *Instance) Contains(ts time.Time) bool {
	return !ts.Before(in.Start) && ts.Before(in.End)
}

// BreakAt reports whether ts falls inside one of the instance's breaks.
func (in *Instance) BreakAt(ts time.Time) bool {
	for _, b := range in.Breaks {
		if b.Contains(ts) {
			return true
		}
	}
	return false
}

type compiledBreak struct {
	offset time.Duration
	length time.Duration
	days   []time.Weekday
}

type compiledShift struct {
	def    models.ShiftDefinition
	length time.Duration
	breaks []compiledBreak
}

// Index is an immutable, validated schedule. It is safe for concurrent use.
type Index struct {
	loc    *time.Location
	shifts []compiledShift
}

// New validates s over its weekly recurrence and compiles it.
// Inconsistent calendars fail with *ConflictError.
func New(s models.Schedule) (*Index, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	if len(s.Shifts) == 0 {
		return nil, &ConflictError{Reason: "schedule defines no shifts"}
	}

	x := &Index{loc: loc, shifts: make([]compiledShift, len(s.Shifts))}
	for i, def := range s.Shifts {
		if def.Code == "" {
			return nil, &ConflictError{Reason: fmt.Sprintf("shift #%d has no code", i+1)}
		}
		if def.Start < 0 || time.Duration(def.Start) >= models.Day || def.End < 0 || time.Duration(def.End) >= models.Day {
			return nil, &ConflictError{Shift: def.Code, Reason: "clock outside 00:00-24:00"}
		}
		x.shifts[i] = compiledShift{def: def, length: def.Length()}
	}
	if err := checkOverlaps(x.shifts); err != nil {
		return nil, err
	}
	for _, b := range s.Breaks {
		if err := x.attachBreak(b); err != nil {
			return nil, err
		}
	}
	for i := range x.shifts {
		if err := checkBreakOverlaps(&x.shifts[i]); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (x *Index) Location() *time.Location { return x.loc }

type weekSpan struct {
	code       string
	start, end time.Duration
}

// checkOverlaps lays every shift occurrence on an abstract week, including
// occurrences that wrap past Saturday midnight.
func checkOverlaps(shifts []compiledShift) error {
	var spans []weekSpan
	for _, sh := range shifts {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if !sh.def.Recurs(d) {
				continue
			}
			start := time.Duration(d)*models.Day + time.Duration(sh.def.Start)
			spans = append(spans, weekSpan{code: sh.def.Code, start: start, end: start + sh.length})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i-1].end > spans[i].start {
			return &ConflictError{Shift: spans[i-1].code, Other: spans[i].code, Reason: "shift windows overlap"}
		}
	}
	if n := len(spans); n > 1 {
		last := spans[n-1]
		if last.end-week > spans[0].start {
			return &ConflictError{Shift: last.code, Other: spans[0].code, Reason: "shift windows overlap across the week boundary"}
		}
	}
	return nil
}

func (x *Index) attachBreak(b models.BreakWindow) error {
	if b.Duration <= 0 {
		return &ConflictError{Shift: b.ShiftCode, Reason: "break has no duration"}
	}
	attached := false
	for i := range x.shifts {
		sh := &x.shifts[i]
		if sh.def.Code != b.ShiftCode || !sharesDay(sh.def, b) {
			continue
		}
		if b.Offset <= 0 || b.Offset+b.Duration >= sh.length {
			return &ConflictError{Shift: b.ShiftCode, Reason: fmt.Sprintf("break at +%s for %s is not inside the shift", b.Offset, b.Duration)}
		}
		sh.breaks = append(sh.breaks, compiledBreak{offset: b.Offset, length: b.Duration, days: b.Days})
		attached = true
	}
	if !attached {
		return &ConflictError{Shift: b.ShiftCode, Reason: "break references an unknown shift"}
	}
	return nil
}

func sharesDay(def models.ShiftDefinition, b models.BreakWindow) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if def.Recurs(d) && b.Recurs(d) {
			return true
		}
	}
	return false
}

func checkBreakOverlaps(sh *compiledShift) error {
	sort.SliceStable(sh.breaks, func(i, j int) bool { return sh.breaks[i].offset < sh.breaks[j].offset })
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !sh.def.Recurs(d) {
			continue
		}
		var prevEnd time.Duration = -1
		for _, b := range sh.breaks {
			if !recurs(b.days, d) {
				continue
			}
			if b.offset < prevEnd {
				return &ConflictError{Shift: sh.def.Code, Reason: "break windows overlap"}
			}
			prevEnd = b.offset + b.length
		}
	}
	return nil
}

func recurs(days []time.Weekday, d time.Weekday) bool {
	return models.BreakWindow{Days: days}.Recurs(d)
}

// Instances returns the shift instances intersecting [from, to), ordered by start.
func (x *Index) Instances(from, to time.Time) []Instance {
	first := x.midnight(from).AddDate(0, 0, -2)
	last := x.midnight(to).AddDate(0, 0, 2)

	var all []Instance
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, sh := range x.shifts {
			if !sh.def.Recurs(day.Weekday()) {
				continue
			}
			all = append(all, x.materialize(sh, day))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })

	for i := range all {
		if i == 0 {
			all[i].PrecedingGap = all[i].Start.Sub(first)
		} else {
			all[i].PrecedingGap = all[i].Start.Sub(all[i-1].End)
		}
		all[i].Stoppage = i == len(all)-1 || !all[i+1].Start.Equal(all[i].End)
	}

	out := all[:0]
	for _, in := range all {
		if in.End.After(from) && in.Start.Before(to) {
			out = append(out, in)
		}
	}
	return out
}

func (x *Index) midnight(ts time.Time) time.Time {
	t := ts.In(x.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, x.loc)
}

// materialize builds the instance of sh starting on the calendar day of day.
// Wall-clock fields go through time.Date so DST days get their real length.
func (x *Index) materialize(sh compiledShift, day time.Time) Instance {
	y, m, d := day.Date()
	s, e := sh.def.Start, sh.def.End
	start := time.Date(y, m, d, s.Hour(), s.Minute(), s.Second(), 0, x.loc)
	endDay := d
	if sh.def.Wraps() {
		endDay++
	}
	end := time.Date(y, m, endDay, e.Hour(), e.Minute(), e.Second(), 0, x.loc)

	in := Instance{Code: sh.def.Code, Start: start, End: end}
	for _, b := range sh.breaks {
		if !recurs(b.days, day.Weekday()) {
			continue
		}
		bs := start.Add(b.offset)
		be := bs.Add(b.length)
		if be.After(end) {
			be = end
		}
		in.Breaks = append(in.Breaks, Window{Start: bs, End: be})
	}
	return in
}

// Lookup returns the shift owning ts and whether ts falls in one of its breaks.
func (x *Index) Lookup(ts time.Time) (code string, ok bool, inBreak bool) {
	for _, in := range x.Instances(ts, ts.Add(time.Nanosecond)) {
		if in.Contains(ts) {
			return in.Code, true, in.BreakAt(ts)
		}
	}
	return "", false, false
}

// Split partitions [start, end) at every shift boundary. The returned
// segments are contiguous and their durations sum to end-start.
func (x *Index) Split(start, end time.Time) []Segment {
	return x.Timeline(start, end).Cover(start, end)
}

// Timeline materializes the instances for [from, to) once so that a sorted
// event sequence can be split with a forward-only sweep.
func (x *Index) Timeline(from, to time.Time) *Timeline {
	if to.Before(from) {
		to = from
	}
	return &Timeline{instances: x.Instances(from, to.Add(time.Nanosecond))}
}
