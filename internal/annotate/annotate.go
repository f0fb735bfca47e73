// Package annotate tags a single machine's ordered event sequence with its
// shift mapping and the adjacency flags the streak rules depend on.
package annotate

import (
	"fmt"
	"time"

	"jammertime/internal/models"
	"jammertime/internal/schedule"
)

// Event is a machine event with its schedule context.
type Event struct {
	models.MachineEvent

	// ShiftCode owns the event start; empty when the start is off schedule.
	ShiftCode         string
	FollowsShiftStart bool
	FollowsBreakEnd   bool
	CrossesBoundary   bool
	Segments          []schedule.Segment
}

// OrderError is returned for unsorted or overlapping input.
type OrderError struct {
	MachineID string
	Index     int
	Reason    string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("machine %q: event #%d: %s", e.MachineID, e.Index, e.Reason)
}

// UnmappedEventWarning flags an event lying entirely outside all shifts.
type UnmappedEventWarning struct {
	MachineID string        `json:"machine_id"`
	State     string        `json:"state"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Duration  time.Duration `json:"duration"`
}

func (w UnmappedEventWarning) String() string {
	return fmt.Sprintf("%s: %s event %s..%s is outside all shifts",
		w.MachineID, w.State, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

type Annotator struct {
	index *schedule.Index
	cfg   models.CalcConfig
}

func New(index *schedule.Index, cfg models.CalcConfig) *Annotator {
	return &Annotator{index: index, cfg: cfg}
}

type breakKey struct {
	inst *schedule.Instance
	idx  int
}

// Annotate processes one machine's events in start order. Events must not
// overlap and must all belong to the same machine.
func (a *Annotator) Annotate(events []models.MachineEvent) ([]Event, []UnmappedEventWarning, error) {
	if len(events) == 0 {
		return nil, nil, nil
	}
	if err := checkOrder(events); err != nil {
		return nil, nil, err
	}

	tl := a.index.Timeline(events[0].Start, events[len(events)-1].End)
	out := make([]Event, len(events))
	var warnings []UnmappedEventWarning

	var (
		prev         *models.MachineEvent
		shiftHandled *schedule.Instance
		breakHandled = make(map[breakKey]bool)
	)

	for i, ev := range events {
		segs := tl.Cover(ev.Start, ev.End)
		ae := Event{
			MachineEvent:    ev,
			Segments:        segs,
			CrossesBoundary: len(segs) > 1,
		}
		if segs[0].Mapped() {
			ae.ShiftCode = segs[0].Code
		}

		if ev.Duration() > 0 {
			if in := segs[0].Instance; in != nil {
				if in != shiftHandled {
					shiftHandled = in
					ae.FollowsShiftStart = a.resumesShift(ev, in, prev)
				}
				if bi, span, ok := workingSpan(in, ev.Start); ok && bi >= 0 {
					key := breakKey{in, bi}
					if !breakHandled[key] {
						breakHandled[key] = true
						ae.FollowsBreakEnd = a.resumesBreak(ev, span, prev)
					}
				}
			}
			if !hasMapped(segs) {
				warnings = append(warnings, UnmappedEventWarning{
					MachineID: ev.MachineID,
					State:     ev.State,
					Start:     ev.Start,
					End:       ev.End,
					Duration:  ev.Duration(),
				})
			}
			prev = &events[i]
		}
		out[i] = ae
	}
	return out, warnings, nil
}

func checkOrder(events []models.MachineEvent) error {
	id := events[0].MachineID
	for i, ev := range events {
		if ev.MachineID != id {
			return &OrderError{MachineID: id, Index: i, Reason: fmt.Sprintf("belongs to machine %q", ev.MachineID)}
		}
		if ev.End.Before(ev.Start) {
			return &OrderError{MachineID: id, Index: i, Reason: "ends before it starts"}
		}
		if i == 0 {
			continue
		}
		prev := events[i-1]
		if ev.Start.Before(prev.Start) {
			return &OrderError{MachineID: id, Index: i, Reason: "not sorted by start"}
		}
		if ev.Start.Before(prev.End) {
			return &OrderError{MachineID: id, Index: i, Reason: "overlaps the previous event"}
		}
	}
	return nil
}

func hasMapped(segs []schedule.Segment) bool {
	for _, s := range segs {
		if s.Mapped() {
			return true
		}
	}
	return false
}

// workingSpan finds the working stretch of in that contains ts. bi is the
// index of the break that opens it, or -1 for the stretch after the shift start.
func workingSpan(in *schedule.Instance, ts time.Time) (bi int, brk schedule.Window, ok bool) {
	bi = -1
	for i, b := range in.Breaks {
		if b.Contains(ts) {
			return 0, schedule.Window{}, false
		}
		if !ts.Before(b.End) {
			bi, brk = i, b
		}
	}
	return bi, brk, true
}

// resumesShift decides whether the first event starting inside a shift
// instance follows a restart. Without a grace window the machine must have
// been stopped when the shift began: no earlier data, a data gap longer than
// IdleThreshold, or a non-running event reaching over the off-schedule span.
// A machine that kept running into the shift does not restart.
func (a *Annotator) resumesShift(ev models.MachineEvent, in *schedule.Instance, prev *models.MachineEvent) bool {
	if a.cfg.ShiftStartGrace > 0 {
		return ev.Start.Before(in.Start.Add(a.cfg.ShiftStartGrace))
	}
	if prev == nil || ev.Start.Sub(prev.End) > a.cfg.IdleThreshold {
		return true
	}
	if in.PrecedingGap <= 0 {
		return false
	}
	return a.stoppedOver(*prev, in.Start.Add(-in.PrecedingGap))
}

// resumesBreak is resumesShift for the working stretch after brk.
func (a *Annotator) resumesBreak(ev models.MachineEvent, brk schedule.Window, prev *models.MachineEvent) bool {
	if a.cfg.BreakEndGrace > 0 {
		return ev.Start.Before(brk.End.Add(a.cfg.BreakEndGrace))
	}
	if prev == nil || ev.Start.Sub(prev.End) > a.cfg.IdleThreshold {
		return true
	}
	return a.stoppedOver(*prev, brk.Start)
}

// stoppedOver reports whether prev is a stopped state still in force after
// since, i.e. it covers at least part of the pause that ended.
func (a *Annotator) stoppedOver(prev models.MachineEvent, since time.Time) bool {
	return !a.cfg.IsRunning(prev.State) && prev.End.After(since)
}
