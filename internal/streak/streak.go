// Package streak groups consecutive error events into streaks and decides
// which of them count as jams.
package streak

import (
	"time"

	"jammertime/internal/annotate"
	"jammertime/internal/models"
	"jammertime/internal/schedule"
)

// Streak is a maximal run of contiguous error events of one machine.
type Streak struct {
	MachineID string
	Start     time.Time
	End       time.Time
	Events    []annotate.Event

	// Reason is empty when the streak is counted as a jam.
	Reason models.ExclusionReason
}

func (s Streak) Duration() time.Duration { return s.End.Sub(s.Start) }

func (s Streak) Included() bool { return s.Reason == "" }

// Fragment is the share of a streak that fell into one shift. Code is empty
// for the off-schedule share.
type Fragment struct {
	Code     string
	Duration time.Duration
}

// Fragments apportions the streak across shifts in order of first
// appearance. The fragment durations sum exactly to Duration.
func (s Streak) Fragments() []Fragment {
	var out []Fragment
	pos := make(map[string]int)
	for _, e := range s.Events {
		for _, seg := range e.Segments {
			d := seg.Duration()
			if d == 0 {
				continue
			}
			i, ok := pos[seg.Code]
			if !ok {
				i = len(out)
				pos[seg.Code] = i
				out = append(out, Fragment{Code: seg.Code})
			}
			out[i].Duration += d
		}
	}
	return out
}

func (s Streak) instances() []*schedule.Instance {
	var out []*schedule.Instance
	seen := make(map[*schedule.Instance]bool)
	for _, e := range s.Events {
		for _, seg := range e.Segments {
			if seg.Instance != nil && !seen[seg.Instance] {
				seen[seg.Instance] = true
				out = append(out, seg.Instance)
			}
		}
	}
	return out
}

type Classifier struct {
	cfg   models.CalcConfig
	rules []rule
}

type rule struct {
	reason models.ExclusionReason
	match  func(Streak) bool
}

func NewClassifier(cfg models.CalcConfig) *Classifier {
	c := &Classifier{cfg: cfg}
	order := cfg.Precedence
	if len(order) == 0 {
		order = models.DefaultPrecedence
	}
	for _, r := range order {
		switch r {
		case models.ReasonRestartArtifact:
			c.rules = append(c.rules, rule{r, restartArtifact})
		case models.ReasonBreakInterrupted:
			c.rules = append(c.rules, rule{r, breakInterrupted})
		case models.ReasonMaintenanceClosure:
			c.rules = append(c.rules, rule{r, c.maintenanceClosure})
		}
	}
	return c
}

// Group collects the streaks of an annotated sequence. Zero-duration events
// are skipped; a gap in time or any other state ends a streak.
func (c *Classifier) Group(events []annotate.Event) []Streak {
	var (
		out []Streak
		cur *Streak
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, e := range events {
		if e.Duration() == 0 {
			continue
		}
		if e.State != c.cfg.ErrorState {
			flush()
			continue
		}
		if cur != nil && !cur.End.Equal(e.Start) {
			flush()
		}
		if cur == nil {
			cur = &Streak{MachineID: e.MachineID, Start: e.Start}
		}
		cur.Events = append(cur.Events, e)
		cur.End = e.End
	}
	flush()
	return out
}

// Classify groups events and applies the exclusion rules in precedence order.
// The first matching rule decides the reason.
func (c *Classifier) Classify(events []annotate.Event) []Streak {
	streaks := c.Group(events)
	for i := range streaks {
		streaks[i].Reason = c.reason(streaks[i])
	}
	return streaks
}

func (c *Classifier) reason(s Streak) models.ExclusionReason {
	for _, r := range c.rules {
		if r.match(s) {
			return r.reason
		}
	}
	return ""
}

func restartArtifact(s Streak) bool {
	first := s.Events[0]
	return first.FollowsShiftStart || first.FollowsBreakEnd
}

// breakInterrupted matches streaks that overlap a break or run into the
// start of one, and streaks that reach a shift end where production stops.
func breakInterrupted(s Streak) bool {
	for _, in := range s.instances() {
		for _, b := range in.Breaks {
			if s.Start.Before(b.End) && !s.End.Before(b.Start) {
				return true
			}
		}
		if in.Stoppage && s.Start.Before(in.End) && !s.End.Before(in.End) {
			return true
		}
	}
	return false
}

func (c *Classifier) maintenanceClosure(s Streak) bool {
	return s.Duration() > c.cfg.MaxJamDuration
}
