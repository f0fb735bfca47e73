package ingest

import (
	"fmt"
	"sort"

	"jammertime/internal/models"
)

// InferRegistry collects the machines and state codes present in events.
func InferRegistry(events []models.MachineEvent) models.Registry {
	machines := make(map[string]bool)
	states := make(map[string]bool)
	var reg models.Registry
	for _, e := range events {
		machines[e.MachineID] = true
		states[e.State] = true
		if reg.From.IsZero() || e.Start.Before(reg.From) {
			reg.From = e.Start
		}
		if e.End.After(reg.To) {
			reg.To = e.End
		}
	}
	reg.Machines = sortedSet(machines)
	reg.States = sortedSet(states)
	reg.Events = len(events)
	return reg
}

// ValidateAgainst fails on the first event naming a machine or state
// outside reg.
func ValidateAgainst(reg models.Registry, events []models.MachineEvent) error {
	for i, e := range events {
		if !reg.HasMachine(e.MachineID) {
			return fmt.Errorf("event #%d: unknown machine %q", i, e.MachineID)
		}
		if !reg.HasState(e.State) {
			return fmt.Errorf("event #%d: machine %q reports unknown state %q", i, e.MachineID, e.State)
		}
	}
	return nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
