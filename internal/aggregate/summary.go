package aggregate

import (
	"encoding/json"
	"sort"
	"time"

	"jammertime/internal/annotate"
	"jammertime/internal/models"
)

// MaxWarnings caps the unmapped-event samples kept in a summary. The count
// of all unmapped events is always exact.
const MaxWarnings = 100

// Summary is the read-only result of a calculation.
type Summary struct {
	errorState string
	machines   map[string]MachineSummary
	shifts     map[string]map[string]time.Duration
	unmapped   map[string]time.Duration
	excluded   map[models.ExclusionReason]time.Duration
	jamsBy     map[string]int
	jams       int
	jamTime    time.Duration
	raw        time.Duration
	events     int
	unmappedN  int
	from, to   time.Time
	warnings   []annotate.UnmappedEventWarning
}

// Builder accumulates machine partitions. Adding the same machine twice sums
// its totals, so partitions may be reduced in any order.
type Builder struct {
	errorState string
	machines   map[string]*MachineSummary
	warnings   []annotate.UnmappedEventWarning
}

func NewBuilder(errorState string) *Builder {
	return &Builder{errorState: errorState, machines: make(map[string]*MachineSummary)}
}

func (b *Builder) Add(m MachineSummary, warnings ...annotate.UnmappedEventWarning) {
	if cur, ok := b.machines[m.MachineID]; ok {
		cur.merge(m)
	} else {
		c := m.clone()
		b.machines[m.MachineID] = &c
	}
	b.warnings = append(b.warnings, warnings...)
}

// Finish computes the cross-machine totals. The builder may keep being used.
func (b *Builder) Finish() Summary {
	s := Summary{
		errorState: b.errorState,
		machines:   make(map[string]MachineSummary, len(b.machines)),
		shifts:     make(map[string]map[string]time.Duration),
		unmapped:   make(map[string]time.Duration),
		excluded:   make(map[models.ExclusionReason]time.Duration),
		jamsBy:     make(map[string]int),
	}
	for _, id := range sortedKeys(b.machines) {
		m := b.machines[id]
		s.machines[id] = m.clone()
		for code, states := range m.Shifts {
			dst := s.shifts[code]
			if dst == nil {
				dst = make(map[string]time.Duration)
				s.shifts[code] = dst
			}
			for st, d := range states {
				dst[st] += d
			}
		}
		for st, d := range m.Unmapped {
			s.unmapped[st] += d
		}
		for r, d := range m.Excluded {
			s.excluded[r] += d
		}
		for code, n := range m.JamsByShift {
			s.jamsBy[code] += n
		}
		s.jams += m.Jams
		s.jamTime += m.JamDuration
		s.raw += m.Raw
		s.events += m.Events
		s.unmappedN += m.UnmappedEvents
		s.from, s.to = widen(s.from, s.to, m.From, m.To)
	}

	w := append([]annotate.UnmappedEventWarning(nil), b.warnings...)
	sort.SliceStable(w, func(i, j int) bool {
		if w[i].MachineID != w[j].MachineID {
			return w[i].MachineID < w[j].MachineID
		}
		return w[i].Start.Before(w[j].Start)
	})
	if len(w) > MaxWarnings {
		w = w[:MaxWarnings]
	}
	s.warnings = w
	return s
}

// Merge combines summaries by summation.
func Merge(errorState string, parts ...Summary) Summary {
	b := NewBuilder(errorState)
	for _, p := range parts {
		for _, id := range p.Machines() {
			b.Add(p.machines[id])
		}
		b.warnings = append(b.warnings, p.warnings...)
	}
	return b.Finish()
}

func (s Summary) ErrorState() string { return s.errorState }

func (s Summary) Empty() bool { return s.events == 0 }

// ShiftCodes returns the shifts that received any time, sorted.
func (s Summary) ShiftCodes() []string { return sortedKeys(s.shifts) }

// States returns the states recorded for a shift, sorted.
func (s Summary) States(code string) []string { return sortedKeys(s.shifts[code]) }

func (s Summary) Duration(code, state string) time.Duration { return s.shifts[code][state] }

func (s Summary) ShiftTotal(code string) time.Duration {
	var sum time.Duration
	for _, d := range s.shifts[code] {
		sum += d
	}
	return sum
}

func (s Summary) UnmappedStates() []string { return sortedKeys(s.unmapped) }

func (s Summary) Unmapped(state string) time.Duration { return s.unmapped[state] }

func (s Summary) Excluded(r models.ExclusionReason) time.Duration { return s.excluded[r] }

// Exclusions returns a copy of the exclusion ledger.
func (s Summary) Exclusions() map[models.ExclusionReason]time.Duration { return copyMap(s.excluded) }

func (s Summary) Jams() int { return s.jams }

func (s Summary) JamsIn(code string) int { return s.jamsBy[code] }

// JamDuration is the total length of the included streaks.
func (s Summary) JamDuration() time.Duration { return s.jamTime }

// AverageJam is the mean duration of the included streaks.
func (s Summary) AverageJam() time.Duration { return average(s.jamTime, s.jams) }

// AverageJamIn is the included error time of a shift divided by the jams
// counted in it. A jam split across a hand-over counts in both shifts.
func (s Summary) AverageJamIn(code string) time.Duration {
	return average(s.Duration(code, s.errorState), s.JamsIn(code))
}

// MachineJams is the number of included streaks of one machine.
func (s Summary) MachineJams(id string) int { return s.machines[id].Jams }

// MachineJamDuration is the included error time of one machine.
func (s Summary) MachineJamDuration(id string) time.Duration { return s.machines[id].JamDuration }

// JamShare is the machine's fraction of all jams; 0 when there are none.
func (s Summary) JamShare(id string) float64 {
	if s.jams == 0 {
		return 0
	}
	return float64(s.machines[id].Jams) / float64(s.jams)
}

// MachinesIn returns the machines that spent time in a shift, sorted.
func (s Summary) MachinesIn(code string) []string {
	var out []string
	for _, id := range s.Machines() {
		if len(s.machines[id].Shifts[code]) > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (s Summary) MachineStates(id, code string) []string {
	return sortedKeys(s.machines[id].Shifts[code])
}

func (s Summary) MachineDuration(id, code, state string) time.Duration {
	return s.machines[id].Shifts[code][state]
}

func (s Summary) MachineShiftTotal(id, code string) time.Duration {
	var sum time.Duration
	for _, d := range s.machines[id].Shifts[code] {
		sum += d
	}
	return sum
}

func (s Summary) MachineJamsIn(id, code string) int { return s.machines[id].JamsByShift[code] }

// MachineAverageJamIn is AverageJamIn restricted to one machine.
func (s Summary) MachineAverageJamIn(id, code string) time.Duration {
	return average(s.MachineDuration(id, code, s.errorState), s.MachineJamsIn(id, code))
}

func average(total time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

func (s Summary) Raw() time.Duration { return s.raw }

func (s Summary) Events() int { return s.events }

func (s Summary) Range() (time.Time, time.Time) { return s.from, s.to }

func (s Summary) Machines() []string { return sortedKeys(s.machines) }

func (s Summary) Machine(id string) (MachineSummary, bool) {
	m, ok := s.machines[id]
	if !ok {
		return MachineSummary{}, false
	}
	return m.clone(), true
}

// UnmappedEvents is the number of events that fell outside all shifts.
func (s Summary) UnmappedEvents() int { return s.unmappedN }

func (s Summary) Warnings() []annotate.UnmappedEventWarning {
	return append([]annotate.UnmappedEventWarning(nil), s.warnings...)
}

type summaryJSON struct {
	ErrorState     string                                   `json:"error_state"`
	From           time.Time                                `json:"from"`
	To             time.Time                                `json:"to"`
	Shifts         map[string]map[string]time.Duration      `json:"shifts"`
	Unmapped       map[string]time.Duration                 `json:"unmapped,omitempty"`
	Excluded       map[models.ExclusionReason]time.Duration `json:"excluded,omitempty"`
	Jams           int                                      `json:"jams"`
	JamsByShift    map[string]int                           `json:"jams_by_shift,omitempty"`
	JamDuration    time.Duration                            `json:"jam_duration"`
	Raw            time.Duration                            `json:"raw"`
	Events         int                                      `json:"events"`
	UnmappedEvents int                                      `json:"unmapped_events"`
	Machines       []MachineSummary                         `json:"machines"`
	Warnings       []annotate.UnmappedEventWarning          `json:"warnings,omitempty"`
}

// MarshalJSON emits durations as integer nanoseconds. encoding/json sorts map
// keys, so equal summaries encode to identical bytes.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := summaryJSON{
		ErrorState:     s.errorState,
		From:           s.from,
		To:             s.to,
		Shifts:         s.shifts,
		Unmapped:       nonEmpty(s.unmapped),
		Excluded:       nonEmpty(s.excluded),
		Jams:           s.jams,
		JamsByShift:    nonEmpty(s.jamsBy),
		JamDuration:    s.jamTime,
		Raw:            s.raw,
		Events:         s.events,
		UnmappedEvents: s.unmappedN,
		Warnings:       s.warnings,
	}
	if out.Shifts == nil {
		out.Shifts = map[string]map[string]time.Duration{}
	}
	out.Machines = make([]MachineSummary, 0, len(s.machines))
	for _, id := range s.Machines() {
		out.Machines = append(out.Machines, s.machines[id])
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a stored summary. Totals are recomputed from the
// machine breakdown.
func (s *Summary) UnmarshalJSON(b []byte) error {
	var in summaryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	bld := NewBuilder(in.ErrorState)
	for _, m := range in.Machines {
		if m.Shifts == nil {
			m.Shifts = make(map[string]map[string]time.Duration)
		}
		bld.Add(m)
	}
	bld.warnings = in.Warnings
	*s = bld.Finish()
	return nil
}

func nonEmpty[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	return m
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
