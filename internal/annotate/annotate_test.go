package annotate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jammertime/internal/models"
	"jammertime/internal/schedule"
)

func at(hh, mm int) time.Time {
	return time.Date(2025, time.March, 3, hh, mm, 0, 0, time.UTC)
}

func ev(state string, from, to time.Time) models.MachineEvent {
	return models.MachineEvent{MachineID: "M1", State: state, Start: from, End: to}
}

func dayShift(t *testing.T, extra ...models.ShiftDefinition) *schedule.Index {
	t.Helper()
	s := models.Schedule{
		Shifts: append([]models.ShiftDefinition{
			{Code: "A", Start: models.MustClock("06:00"), End: models.MustClock("14:00")},
		}, extra...),
		Breaks: []models.BreakWindow{{ShiftCode: "A", Offset: 4 * time.Hour, Duration: 15 * time.Minute}},
	}
	idx, err := schedule.New(s)
	require.NoError(t, err)
	return idx
}

func TestAnnotate_IdleMode(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())
	out, warns, err := a.Annotate([]models.MachineEvent{
		ev("ERROR", at(6, 2), at(6, 6)),
		ev("RUNNING", at(6, 6), at(9, 58)),
		ev("IDLE", at(9, 58), at(10, 16)),
		ev("RUNNING", at(10, 16), at(11, 0)),
		ev("ERROR", at(11, 0), at(11, 20)),
	})
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, out, 5)

	assert.True(t, out[0].FollowsShiftStart)
	assert.Equal(t, "A", out[0].ShiftCode)
	assert.False(t, out[1].FollowsShiftStart)
	assert.False(t, out[2].FollowsBreakEnd, "started before the break ended")
	assert.True(t, out[3].FollowsBreakEnd)
	assert.False(t, out[4].FollowsBreakEnd)
	assert.False(t, out[4].FollowsShiftStart)
	for _, e := range out {
		assert.False(t, e.CrossesBoundary)
	}
}

func TestAnnotate_IdleMode_RunningThroughPauseIsNotARestart(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())

	out, _, err := a.Annotate([]models.MachineEvent{
		ev("RUNNING", at(6, 0), at(11, 0)),
		ev("ERROR", at(11, 0), at(11, 20)),
		ev("RUNNING", at(11, 20), at(14, 0)),
	})
	require.NoError(t, err)
	assert.False(t, out[1].FollowsBreakEnd, "machine ran through the break")
	assert.False(t, out[1].FollowsShiftStart)

	out, _, err = a.Annotate([]models.MachineEvent{
		ev("RUNNING", at(5, 0), at(9, 0)),
		ev("ERROR", at(9, 0), at(9, 10)),
	})
	require.NoError(t, err)
	assert.Empty(t, out[0].ShiftCode)
	assert.False(t, out[1].FollowsShiftStart, "machine ran into the shift")
}

func TestAnnotate_IdleMode_StoppedOverPauseIsARestart(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())

	cases := []struct {
		name       string
		events     []models.MachineEvent
		wantShift  bool
		wantBreak  bool
		checkIndex int
	}{
		{
			name: "off before the shift",
			events: []models.MachineEvent{
				ev("OFF", at(5, 0), at(6, 0)),
				ev("ERROR", at(6, 0), at(6, 4)),
			},
			wantShift:  true,
			checkIndex: 1,
		},
		{
			name: "idle across the break",
			events: []models.MachineEvent{
				ev("RUNNING", at(6, 0), at(10, 0)),
				ev("IDLE", at(10, 0), at(10, 15)),
				ev("ERROR", at(10, 15), at(10, 20)),
			},
			wantBreak:  true,
			checkIndex: 2,
		},
		{
			name: "idle that ended before the break",
			events: []models.MachineEvent{
				ev("IDLE", at(6, 0), at(9, 59)),
				ev("RUNNING", at(9, 59), at(10, 30)),
				ev("ERROR", at(10, 30), at(10, 40)),
			},
			checkIndex: 2,
		},
		{
			name: "data gap longer than the idle threshold",
			events: []models.MachineEvent{
				ev("RUNNING", at(6, 0), at(10, 0)),
				ev("ERROR", at(10, 20), at(10, 25)),
			},
			wantBreak:  true,
			checkIndex: 1,
		},
		{
			name: "data gap within the idle threshold",
			events: []models.MachineEvent{
				ev("RUNNING", at(6, 0), at(10, 14)),
				ev("ERROR", at(10, 17), at(10, 25)),
			},
			checkIndex: 1,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := a.Annotate(tc.events)
			require.NoError(t, err)
			got := out[tc.checkIndex]
			assert.Equal(t, tc.wantShift, got.FollowsShiftStart, "FollowsShiftStart")
			assert.Equal(t, tc.wantBreak, got.FollowsBreakEnd, "FollowsBreakEnd")
		})
	}
}

func TestAnnotate_IdleMode_CustomRunningStates(t *testing.T) {
	t.Parallel()

	events := []models.MachineEvent{
		ev("RUNNING", at(6, 0), at(10, 0)),
		ev("SETUP", at(10, 0), at(10, 15)),
		ev("ERROR", at(10, 15), at(10, 30)),
	}

	out, _, err := New(dayShift(t), models.DefaultCalcConfig()).Annotate(events)
	require.NoError(t, err)
	assert.True(t, out[2].FollowsBreakEnd, "SETUP is a stopped state by default")

	cfg := models.DefaultCalcConfig()
	cfg.RunningStates = []string{"RUNNING", "SETUP"}
	out, _, err = New(dayShift(t), cfg).Annotate(events)
	require.NoError(t, err)
	assert.False(t, out[2].FollowsBreakEnd)
}

func TestAnnotate_BackToBackShiftsAreNotARestart(t *testing.T) {
	t.Parallel()

	idx := dayShift(t, models.ShiftDefinition{Code: "B", Start: models.MustClock("14:00"), End: models.MustClock("22:00")})
	a := New(idx, models.DefaultCalcConfig())
	out, _, err := a.Annotate([]models.MachineEvent{
		ev("RUNNING", at(13, 0), at(14, 30)),
		ev("RUNNING", at(14, 30), at(15, 0)),
	})
	require.NoError(t, err)

	assert.True(t, out[0].CrossesBoundary)
	assert.Equal(t, "A", out[0].ShiftCode)
	require.Len(t, out[0].Segments, 2)
	assert.Equal(t, "B", out[0].Segments[1].Code)
	assert.Equal(t, "B", out[1].ShiftCode)
	assert.False(t, out[1].FollowsShiftStart)
}

func TestAnnotate_DataGapBeforeShift(t *testing.T) {
	t.Parallel()

	idx := dayShift(t, models.ShiftDefinition{Code: "B", Start: models.MustClock("14:00"), End: models.MustClock("22:00")})
	a := New(idx, models.DefaultCalcConfig())
	out, _, err := a.Annotate([]models.MachineEvent{
		ev("RUNNING", at(12, 0), at(13, 0)),
		ev("ERROR", at(14, 10), at(14, 20)),
	})
	require.NoError(t, err)
	assert.True(t, out[1].FollowsShiftStart)
}

func TestAnnotate_GraceMode(t *testing.T) {
	t.Parallel()

	cfg := models.DefaultCalcConfig()
	cfg.ShiftStartGrace = 10 * time.Minute
	cfg.BreakEndGrace = 5 * time.Minute
	a := New(dayShift(t), cfg)

	out, _, err := a.Annotate([]models.MachineEvent{
		ev("ERROR", at(6, 30), at(6, 40)),
		ev("RUNNING", at(10, 15), at(10, 30)),
	})
	require.NoError(t, err)
	assert.False(t, out[0].FollowsShiftStart, "outside the grace window")
	assert.True(t, out[1].FollowsBreakEnd)

	out, _, err = a.Annotate([]models.MachineEvent{
		ev("ERROR", at(6, 5), at(6, 40)),
		ev("RUNNING", at(10, 25), at(10, 30)),
	})
	require.NoError(t, err)
	assert.True(t, out[0].FollowsShiftStart)
	assert.False(t, out[1].FollowsBreakEnd)
}

func TestAnnotate_ZeroDurationEventsCarryNoFlags(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())
	out, _, err := a.Annotate([]models.MachineEvent{
		ev("ERROR", at(6, 0), at(6, 0)),
		ev("ERROR", at(6, 2), at(6, 6)),
	})
	require.NoError(t, err)
	assert.False(t, out[0].FollowsShiftStart)
	assert.Equal(t, "A", out[0].ShiftCode)
	assert.True(t, out[1].FollowsShiftStart)
}

func TestAnnotate_UnmappedWarning(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())
	out, warns, err := a.Annotate([]models.MachineEvent{
		ev("IDLE", at(3, 0), at(4, 0)),
		ev("IDLE", at(5, 30), at(6, 30)),
	})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "M1", warns[0].MachineID)
	assert.Equal(t, time.Hour, warns[0].Duration)
	assert.Empty(t, out[0].ShiftCode)
	assert.Empty(t, out[1].ShiftCode, "start is off schedule")
	assert.True(t, out[1].CrossesBoundary)
}

func TestAnnotate_OrderErrors(t *testing.T) {
	t.Parallel()

	a := New(dayShift(t), models.DefaultCalcConfig())
	tests := []struct {
		name   string
		events []models.MachineEvent
	}{
		{"unsorted", []models.MachineEvent{ev("IDLE", at(7, 0), at(7, 5)), ev("IDLE", at(6, 0), at(6, 5))}},
		{"overlapping", []models.MachineEvent{ev("IDLE", at(7, 0), at(7, 10)), ev("IDLE", at(7, 5), at(7, 15))}},
		{"mixed machines", []models.MachineEvent{ev("IDLE", at(7, 0), at(7, 5)), {MachineID: "M2", State: "IDLE", Start: at(7, 5), End: at(7, 6)}}},
		{"negative duration", []models.MachineEvent{ev("IDLE", at(7, 5), at(7, 0))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.Annotate(tt.events)
			var oe *OrderError
			assert.True(t, errors.As(err, &oe), "got %v", err)
		})
	}
}
