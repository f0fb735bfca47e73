// Package render turns a calculation summary into shift → machine → state
// trees and tables for terminals and JSON clients.
package render

import (
	"time"

	"jammertime/internal/aggregate"
)

// Node kinds.
const (
	KindSummary     = "summary"
	KindJams        = "jams"
	KindMachineJams = "machine_jams"
	KindShift       = "shift"
	KindMachine     = "machine"
	KindState       = "state"
	KindUnmapped    = "unmapped"
	KindExcluded    = "excluded"
	KindReason      = "reason"
)

// Node is one level of the summary tree. Count is events for the summary and
// unmapped nodes and jams everywhere else.
type Node struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	Duration   time.Duration `json:"duration_ns"`
	Count      int           `json:"count,omitempty"`
	Share      float64       `json:"share,omitempty"`
	AverageJam time.Duration `json:"average_jam_ns,omitempty"`
	Children   []Node        `json:"children,omitempty"`
}

// Tree builds the overall jam ranking, then shifts → machines → states, then
// unmapped time and the exclusion ledger. Branches with nothing in them are
// left out. The durations of the shift, unmapped and excluded branches add up
// to the root; the jams branch repeats included error time.
func Tree(sum aggregate.Summary) Node {
	root := Node{Name: "summary", Kind: KindSummary, Duration: sum.Raw(), Count: sum.Events()}

	if machines := sum.Machines(); len(machines) > 0 {
		jams := Node{Name: "machine jams", Kind: KindJams, Duration: sum.JamDuration(), Count: sum.Jams(), AverageJam: sum.AverageJam()}
		for _, id := range machines {
			jams.Children = append(jams.Children, Node{
				Name:     id,
				Kind:     KindMachineJams,
				Duration: sum.MachineJamDuration(id),
				Count:    sum.MachineJams(id),
				Share:    sum.JamShare(id),
			})
		}
		root.Children = append(root.Children, jams)
	}

	for _, code := range sum.ShiftCodes() {
		shift := Node{
			Name:       "shift " + code,
			Kind:       KindShift,
			Duration:   sum.ShiftTotal(code),
			Count:      sum.JamsIn(code),
			AverageJam: sum.AverageJamIn(code),
		}
		for _, id := range sum.MachinesIn(code) {
			machine := Node{
				Name:       id,
				Kind:       KindMachine,
				Duration:   sum.MachineShiftTotal(id, code),
				Count:      sum.MachineJamsIn(id, code),
				AverageJam: sum.MachineAverageJamIn(id, code),
			}
			for _, state := range sum.MachineStates(id, code) {
				machine.Children = append(machine.Children, Node{Name: state, Kind: KindState, Duration: sum.MachineDuration(id, code, state)})
			}
			shift.Children = append(shift.Children, machine)
		}
		root.Children = append(root.Children, shift)
	}

	if states := sum.UnmappedStates(); len(states) > 0 {
		unmapped := Node{Name: "unmapped", Kind: KindUnmapped, Count: sum.UnmappedEvents()}
		for _, state := range states {
			d := sum.Unmapped(state)
			unmapped.Duration += d
			unmapped.Children = append(unmapped.Children, Node{Name: state, Kind: KindState, Duration: d})
		}
		root.Children = append(root.Children, unmapped)
	}

	if ex := sum.Exclusions(); len(ex) > 0 {
		excluded := Node{Name: "excluded", Kind: KindExcluded}
		for _, reason := range sortedReasons(ex) {
			excluded.Duration += ex[reason]
			excluded.Children = append(excluded.Children, Node{Name: string(reason), Kind: KindReason, Duration: ex[reason]})
		}
		root.Children = append(root.Children, excluded)
	}
	return root
}
