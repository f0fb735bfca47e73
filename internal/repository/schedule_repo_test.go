package repository

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"jammertime/internal/models"
)

func sampleSchedule() models.Schedule {
	return models.Schedule{
		Name:     "plant",
		TimeZone: "Europe/Berlin",
		Shifts: []models.ShiftDefinition{
			{Code: "A", Start: models.MustClock("06:00"), End: models.MustClock("14:00")},
		},
		Breaks: []models.BreakWindow{{ShiftCode: "A", Offset: 4 * time.Hour, Duration: 15 * time.Minute}},
	}
}

var scheduleColumns = []string{"id", "name", "definition", "created_ns"}

func TestScheduleCreate(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewScheduleSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertScheduleSQL)).
		WithArgs(sqlmock.AnyArg(), "plant", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(ctx(t), sampleSchedule())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned, got %+v", got)
	}
}

func TestScheduleGet(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewScheduleSQLite(db)

	def, err := json.Marshal(sampleSchedule())
	if err != nil {
		t.Fatal(err)
	}
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(selectScheduleSQL)).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(scheduleColumns).AddRow("s-1", "plant", string(def), created.UnixNano()))

	got, err := repo.Get(ctx(t), "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "s-1" || got.TimeZone != "Europe/Berlin" || len(got.Shifts) != 1 || len(got.Breaks) != 1 {
		t.Fatalf("unexpected schedule: %+v", got)
	}
	if got.Shifts[0].Start != models.MustClock("06:00") || got.Breaks[0].Offset != 4*time.Hour {
		t.Fatalf("definition not restored: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created: want %s, got %s", created, got.CreatedAt)
	}
}

func TestScheduleGet_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewScheduleSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectScheduleSQL)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(scheduleColumns))

	_, err := repo.Get(ctx(t), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestScheduleList_BadDefinition(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewScheduleSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(listSchedulesSQL)).
		WillReturnRows(sqlmock.NewRows(scheduleColumns).AddRow("s-1", "plant", "{not json", 1))

	if _, err := repo.List(ctx(t)); err == nil {
		t.Fatalf("expected decode error")
	}
}
