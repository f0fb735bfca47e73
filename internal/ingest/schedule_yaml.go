package ingest

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"jammertime/internal/models"
)

type yamlSchedule struct {
	Name     string      `yaml:"name"`
	Location string      `yaml:"location"`
	Shifts   []yamlShift `yaml:"shifts"`
}

type yamlShift struct {
	Code   string       `yaml:"code"`
	Days   []string     `yaml:"days"`
	Start  models.Clock `yaml:"start"`
	End    models.Clock `yaml:"end"`
	Breaks []yamlBreak  `yaml:"breaks"`
}

type yamlBreak struct {
	Start models.Clock `yaml:"start"`
	End   models.Clock `yaml:"end"`
}

// ReadScheduleYAML reads a calendar where breaks are given as wall-clock
// times inside their shift:
//
//	name: plant-1
//	location: Europe/Berlin
//	shifts:
//	  - code: A
//	    days: [Mon, Tue, Wed, Thu, Fri]
//	    start: "06:00"
//	    end: "14:00"
//	    breaks:
//	      - {start: "10:00", end: "10:15"}
func ReadScheduleYAML(r io.Reader) (models.Schedule, error) {
	var in yamlSchedule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		return models.Schedule{}, fmt.Errorf("decode schedule yaml: %w", err)
	}

	out := models.Schedule{Name: in.Name, TimeZone: in.Location}
	for _, s := range in.Shifts {
		def := models.ShiftDefinition{Code: s.Code, Start: s.Start, End: s.End}
		for _, d := range s.Days {
			wd, err := models.ParseWeekday(d)
			if err != nil {
				return models.Schedule{}, fmt.Errorf("shift %s: %w", s.Code, err)
			}
			def.Days = append(def.Days, wd)
		}
		out.Shifts = append(out.Shifts, def)
		for _, b := range s.Breaks {
			out.Breaks = append(out.Breaks, models.BreakWindow{
				ShiftCode: s.Code,
				Days:      def.Days,
				Offset:    clockDiff(s.Start, b.Start),
				Duration:  clockDiff(b.Start, b.End),
			})
		}
	}
	return out, nil
}

// WriteScheduleYAML is the inverse of ReadScheduleYAML for schedules whose
// breaks share their shift's days.
func WriteScheduleYAML(w io.Writer, s models.Schedule) error {
	out := yamlSchedule{Name: s.Name, Location: s.TimeZone}
	for _, def := range s.Shifts {
		ys := yamlShift{Code: def.Code, Start: def.Start, End: def.End}
		for _, d := range def.Days {
			ys.Days = append(ys.Days, d.String())
		}
		for _, b := range s.Breaks {
			if b.ShiftCode != def.Code || !sameDays(b.Days, def.Days) {
				continue
			}
			bs := addClock(def.Start, b.Offset)
			ys.Breaks = append(ys.Breaks, yamlBreak{Start: bs, End: addClock(bs, b.Duration)})
		}
		out.Shifts = append(out.Shifts, ys)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func clockDiff(from, to models.Clock) time.Duration {
	d := time.Duration(to - from)
	if d < 0 {
		d += models.Day
	}
	return d
}

func addClock(c models.Clock, d time.Duration) models.Clock {
	return models.Clock((time.Duration(c) + d) % models.Day)
}

func sameDays(a, b []time.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
