package schedule

import "time"

// Segment is the part of an interval that falls in one shift instance, or
// outside all of them when Instance is nil.
type Segment struct {
	Code     string
	Start    time.Time
	End      time.Time
	Instance *Instance
}

func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

func (s Segment) Mapped() bool { return s.Instance != nil }

// Timeline is a materialized window of a schedule with a sweep cursor.
// It is not safe for concurrent use; each partition owns its own.
type Timeline struct {
	instances []Instance
	next      int
}

func (t *Timeline) Instances() []Instance { return t.instances }

// Cover splits [start, end) into segments. Successive calls must not move
// start backwards. A zero-length interval yields one empty segment owned by
// the instance containing start.
func (t *Timeline) Cover(start, end time.Time) []Segment {
	for t.next < len(t.instances) && !t.instances[t.next].End.After(start) {
		t.next++
	}

	if !end.After(start) {
		if t.next < len(t.instances) && t.instances[t.next].Contains(start) {
			in := &t.instances[t.next]
			return []Segment{{Code: in.Code, Start: start, End: start, Instance: in}}
		}
		return []Segment{{Start: start, End: start}}
	}

	var segs []Segment
	cur := start
	for i := t.next; cur.Before(end); i++ {
		if i >= len(t.instances) || !t.instances[i].Start.Before(end) {
			segs = append(segs, Segment{Start: cur, End: end})
			break
		}
		in := &t.instances[i]
		if in.Start.After(cur) {
			segs = append(segs, Segment{Start: cur, End: in.Start})
			cur = in.Start
		}
		stop := in.End
		if end.Before(stop) {
			stop = end
		}
		segs = append(segs, Segment{Code: in.Code, Start: cur, End: stop, Instance: in})
		cur = stop
	}
	return segs
}
