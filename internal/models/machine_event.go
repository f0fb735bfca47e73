package models

import "time"

// MachineEvent is one state interval reported by a machine.
// The interval is half-open: [Start, End).
type MachineEvent struct {
	MachineID string    `json:"machine_id"`
	State     string    `json:"state"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func (e MachineEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Registry is the closed set of machines and states seen in an event log.
type Registry struct {
	Machines []string  `json:"machines"`
	States   []string  `json:"states"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Events   int       `json:"events"`
}

func (r Registry) HasMachine(id string) bool {
	return contains(r.Machines, id)
}

func (r Registry) HasState(state string) bool {
	return contains(r.States, state)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// EventFilter narrows a stored event listing. Zero fields match everything.
type EventFilter struct {
	MachineID string
	From      time.Time
	To        time.Time
	Limit     int
}
