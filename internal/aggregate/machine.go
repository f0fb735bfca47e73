// Package aggregate folds classified machine partitions into per-shift
// state totals and an exclusion ledger.
package aggregate

import (
	"time"

	"jammertime/internal/annotate"
	"jammertime/internal/models"
	"jammertime/internal/streak"
)

// MachineSummary holds one machine's totals. For every machine
// sum(Shifts) + sum(Unmapped) + sum(Excluded) == Raw.
type MachineSummary struct {
	MachineID      string                                   `json:"machine_id"`
	Shifts         map[string]map[string]time.Duration      `json:"shifts"`
	Unmapped       map[string]time.Duration                 `json:"unmapped,omitempty"`
	Excluded       map[models.ExclusionReason]time.Duration `json:"excluded,omitempty"`
	Jams           int                                      `json:"jams"`
	JamsByShift    map[string]int                           `json:"jams_by_shift,omitempty"`
	JamDuration    time.Duration                            `json:"jam_duration"`
	Raw            time.Duration                            `json:"raw"`
	Events         int                                      `json:"events"`
	UnmappedEvents int                                      `json:"unmapped_events,omitempty"`
	From           time.Time                                `json:"from"`
	To             time.Time                                `json:"to"`
}

func newMachine(id string) MachineSummary {
	return MachineSummary{
		MachineID:   id,
		Shifts:      make(map[string]map[string]time.Duration),
		Unmapped:    make(map[string]time.Duration),
		Excluded:    make(map[models.ExclusionReason]time.Duration),
		JamsByShift: make(map[string]int),
	}
}

// Machine builds the summary of one partition. Error time is taken from the
// streaks only; all other states are taken event by event.
func Machine(id, errorState string, events []annotate.Event, streaks []streak.Streak, warnings []annotate.UnmappedEventWarning) MachineSummary {
	m := newMachine(id)
	m.Events = len(events)
	m.UnmappedEvents = len(warnings)
	if len(events) > 0 {
		m.From = events[0].Start
		m.To = events[len(events)-1].End
	}

	for _, e := range events {
		m.Raw += e.Duration()
		if e.State == errorState {
			continue
		}
		for _, seg := range e.Segments {
			m.add(seg.Code, e.State, seg.Duration())
		}
	}

	for _, s := range streaks {
		if !s.Included() {
			m.Excluded[s.Reason] += s.Duration()
			continue
		}
		m.Jams++
		m.JamDuration += s.Duration()
		for _, f := range s.Fragments() {
			m.add(f.Code, errorState, f.Duration)
			if f.Code != "" {
				m.JamsByShift[f.Code]++
			}
		}
	}
	m.prune()
	return m
}

func (m *MachineSummary) add(code, state string, d time.Duration) {
	if d == 0 {
		return
	}
	if code == "" {
		m.Unmapped[state] += d
		return
	}
	states := m.Shifts[code]
	if states == nil {
		states = make(map[string]time.Duration)
		m.Shifts[code] = states
	}
	states[state] += d
}

// prune drops empty maps so that JSON output stays stable.
func (m *MachineSummary) prune() {
	if len(m.Unmapped) == 0 {
		m.Unmapped = nil
	}
	if len(m.Excluded) == 0 {
		m.Excluded = nil
	}
	if len(m.JamsByShift) == 0 {
		m.JamsByShift = nil
	}
}

// merge adds o into m. Both must describe the same machine.
func (m *MachineSummary) merge(o MachineSummary) {
	if m.Unmapped == nil {
		m.Unmapped = make(map[string]time.Duration)
	}
	if m.Excluded == nil {
		m.Excluded = make(map[models.ExclusionReason]time.Duration)
	}
	if m.JamsByShift == nil {
		m.JamsByShift = make(map[string]int)
	}
	for code, states := range o.Shifts {
		for st, d := range states {
			m.add(code, st, d)
		}
	}
	for st, d := range o.Unmapped {
		m.Unmapped[st] += d
	}
	for r, d := range o.Excluded {
		m.Excluded[r] += d
	}
	for code, n := range o.JamsByShift {
		m.JamsByShift[code] += n
	}
	m.Jams += o.Jams
	m.JamDuration += o.JamDuration
	m.Raw += o.Raw
	m.Events += o.Events
	m.UnmappedEvents += o.UnmappedEvents
	m.From, m.To = widen(m.From, m.To, o.From, o.To)
	m.prune()
}

func (m MachineSummary) clone() MachineSummary {
	c := m
	c.Shifts = make(map[string]map[string]time.Duration, len(m.Shifts))
	for code, states := range m.Shifts {
		cs := make(map[string]time.Duration, len(states))
		for st, d := range states {
			cs[st] = d
		}
		c.Shifts[code] = cs
	}
	c.Unmapped = copyMap(m.Unmapped)
	c.Excluded = copyMap(m.Excluded)
	c.JamsByShift = copyMap(m.JamsByShift)
	return c
}

// Accounted is the sum of every bucket the machine's time was sorted into.
func (m MachineSummary) Accounted() time.Duration {
	var sum time.Duration
	for _, states := range m.Shifts {
		for _, d := range states {
			sum += d
		}
	}
	for _, d := range m.Unmapped {
		sum += d
	}
	for _, d := range m.Excluded {
		sum += d
	}
	return sum
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func widen(from, to, oFrom, oTo time.Time) (time.Time, time.Time) {
	if from.IsZero() || (!oFrom.IsZero() && oFrom.Before(from)) {
		from = oFrom
	}
	if oTo.After(to) {
		to = oTo
	}
	return from, to
}
