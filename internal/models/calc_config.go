package models

import (
	"errors"
	"fmt"
	"time"
)

// ExclusionReason names why an error streak was left out of jam totals.
type ExclusionReason string

const (
	ReasonRestartArtifact    ExclusionReason = "restart_artifact"
	ReasonBreakInterrupted   ExclusionReason = "break_interrupted"
	ReasonMaintenanceClosure ExclusionReason = "maintenance_closure"
)

// DefaultPrecedence is the order exclusion rules are evaluated in.
var DefaultPrecedence = []ExclusionReason{
	ReasonRestartArtifact,
	ReasonBreakInterrupted,
	ReasonMaintenanceClosure,
}

const (
	DefaultErrorState     = "ERROR"
	DefaultMaxJamDuration = time.Hour
	DefaultIdleThreshold  = 5 * time.Minute
	DefaultTrailing       = 180 * time.Second
	DefaultWorkers        = 4
)

// DefaultRunningStates are the states in which a machine counts as producing.
var DefaultRunningStates = []string{"RUNNING"}

// CalcConfig holds the thresholds of one calculation. It is passed by value
// and never mutated after Validate.
//
// A zero IdleThreshold means "not set" and is filled by WithDefaults; it has
// no meaning of its own. Config files and API requests that spell out a
// non-positive value are rejected.
type CalcConfig struct {
	ErrorState      string            `json:"error_state"`
	RunningStates   []string          `json:"running_states,omitempty"`
	MaxJamDuration  time.Duration     `json:"max_jam_duration"`
	IdleThreshold   time.Duration     `json:"idle_threshold"`
	ShiftStartGrace time.Duration     `json:"shift_start_grace,omitempty"`
	BreakEndGrace   time.Duration     `json:"break_end_grace,omitempty"`
	Precedence      []ExclusionReason `json:"precedence,omitempty"`
	Workers         int               `json:"workers,omitempty"`
}

func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		ErrorState:     DefaultErrorState,
		RunningStates:  append([]string(nil), DefaultRunningStates...),
		MaxJamDuration: DefaultMaxJamDuration,
		IdleThreshold:  DefaultIdleThreshold,
		Precedence:     append([]ExclusionReason(nil), DefaultPrecedence...),
		Workers:        DefaultWorkers,
	}
}

// WithDefaults fills zero fields from DefaultCalcConfig and copies the slices.
func (c CalcConfig) WithDefaults() CalcConfig {
	d := DefaultCalcConfig()
	if c.ErrorState == "" {
		c.ErrorState = d.ErrorState
	}
	if len(c.RunningStates) == 0 {
		c.RunningStates = d.RunningStates
	} else {
		c.RunningStates = append([]string(nil), c.RunningStates...)
	}
	if c.MaxJamDuration == 0 {
		c.MaxJamDuration = d.MaxJamDuration
	}
	if c.IdleThreshold == 0 {
		c.IdleThreshold = d.IdleThreshold
	}
	if len(c.Precedence) == 0 {
		c.Precedence = d.Precedence
	} else {
		c.Precedence = append([]ExclusionReason(nil), c.Precedence...)
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

func (c CalcConfig) Validate() error {
	var errs []error
	if c.ErrorState == "" {
		errs = append(errs, errors.New("error_state is empty"))
	}
	if c.MaxJamDuration <= 0 {
		errs = append(errs, fmt.Errorf("max_jam_duration must be positive, got %s", c.MaxJamDuration))
	}
	if c.IdleThreshold <= 0 {
		errs = append(errs, fmt.Errorf("idle_threshold must be positive, got %s (use 1ns to count any data gap)", c.IdleThreshold))
	}
	for _, st := range c.RunningStates {
		if st == "" {
			errs = append(errs, errors.New("running_states contains an empty state"))
		}
		if st == c.ErrorState {
			errs = append(errs, fmt.Errorf("error state %q cannot also be a running state", st))
		}
	}
	if c.ShiftStartGrace < 0 || c.BreakEndGrace < 0 {
		errs = append(errs, errors.New("grace windows must not be negative"))
	}
	seen := make(map[ExclusionReason]bool, len(c.Precedence))
	for _, r := range c.Precedence {
		switch r {
		case ReasonRestartArtifact, ReasonBreakInterrupted, ReasonMaintenanceClosure:
		default:
			errs = append(errs, fmt.Errorf("unknown exclusion rule %q", r))
		}
		if seen[r] {
			errs = append(errs, fmt.Errorf("exclusion rule %q listed twice", r))
		}
		seen[r] = true
	}
	return errors.Join(errs...)
}

// IsRunning reports whether state counts as producing. With no running
// states configured only the default RUNNING state does.
func (c CalcConfig) IsRunning(state string) bool {
	states := c.RunningStates
	if len(states) == 0 {
		states = DefaultRunningStates
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// ParsePrecedence parses rule names as used in config files and flags.
func ParsePrecedence(names []string) ([]ExclusionReason, error) {
	out := make([]ExclusionReason, 0, len(names))
	for _, n := range names {
		r := ExclusionReason(n)
		switch r {
		case ReasonRestartArtifact, ReasonBreakInterrupted, ReasonMaintenanceClosure:
			out = append(out, r)
		default:
			return nil, fmt.Errorf("unknown exclusion rule %q", n)
		}
	}
	return out, nil
}
