package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Day = 24 * time.Hour

// Clock is a wall-clock time of day, stored as the offset from midnight.
type Clock time.Duration

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	var vals [3]int
	limits := [3]int{24, 60, 60}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		vals[i] = n
	}
	d := time.Duration(vals[0])*time.Hour + time.Duration(vals[1])*time.Minute + time.Duration(vals[2])*time.Second
	return Clock(d), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(time.Duration(c) / time.Hour) }
func (c Clock) Minute() int { return int(time.Duration(c)%time.Hour) / int(time.Minute) }
func (c Clock) Second() int { return int(time.Duration(c)%time.Minute) / int(time.Second) }

func (c Clock) String() string {
	if c.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ShiftDefinition is a recurring shift window. End at or before Start wraps
// past midnight; End equal to Start is a full 24h shift.
type ShiftDefinition struct {
	Code  string         `json:"code"`
	Days  []time.Weekday `json:"days,omitempty"` // empty = every day
	Start Clock          `json:"start"`
	End   Clock          `json:"end"`
}

func (s ShiftDefinition) Length() time.Duration {
	d := time.Duration(s.End - s.Start)
	if d <= 0 {
		d += Day
	}
	return d
}

func (s ShiftDefinition) Wraps() bool {
	return s.End <= s.Start
}

func (s ShiftDefinition) Recurs(day time.Weekday) bool {
	return recursOn(s.Days, day)
}

// BreakWindow is a planned pause inside every instance of a shift,
// positioned by its offset from the shift start.
type BreakWindow struct {
	ShiftCode string         `json:"shift_code"`
	Days      []time.Weekday `json:"days,omitempty"` // empty = every instance
	Offset    time.Duration  `json:"offset"`
	Duration  time.Duration  `json:"duration"`
}

func (b BreakWindow) Recurs(day time.Weekday) bool {
	return recursOn(b.Days, day)
}

func recursOn(days []time.Weekday, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// Schedule is a named shift calendar. TimeZone is an IANA name; empty means UTC.
type Schedule struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	TimeZone  string            `json:"time_zone,omitempty"`
	Shifts    []ShiftDefinition `json:"shifts"`
	Breaks    []BreakWindow     `json:"breaks,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

func (s Schedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
