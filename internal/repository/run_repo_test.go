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

var runColumns = []string{"id", "schedule_id", "status", "progress", "from_ns", "to_ns", "config", "summary", "error", "created_ns", "finished_ns"}

func TestRunCreate(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	created := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	run := models.Run{
		ID:         "r-1",
		ScheduleID: "s-1",
		Status:     models.RunPending,
		Config:     models.DefaultCalcConfig(),
		CreatedAt:  created,
	}
	cfg, _ := json.Marshal(run.Config)

	mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).
		WithArgs("r-1", "s-1", "pending", 0.0, int64(0), int64(0), string(cfg), nil, "", created.UnixNano(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(ctx(t), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestRunUpdate(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	finished := time.Date(2025, 3, 3, 12, 5, 0, 0, time.UTC)
	run := models.Run{ID: "r-1", Status: models.RunSucceeded, Progress: 1, Summary: json.RawMessage(`{"jams":1}`), FinishedAt: &finished}

	mock.ExpectExec(regexp.QuoteMeta(updateRunSQL)).
		WithArgs("succeeded", 1.0, `{"jams":1}`, "", finished.UnixNano(), "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(ctx(t), run); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestRunUpdate_Missing(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(updateRunSQL)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(ctx(t), models.Run{ID: "ghost", Status: models.RunFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRunGet(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	created := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	finished := created.Add(time.Minute)
	cfg, _ := json.Marshal(models.DefaultCalcConfig())

	mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL)).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("r-1", "s-1", "succeeded", 1.0, 0, 0, string(cfg), `{"jams":3}`, "", created.UnixNano(), finished.UnixNano()))

	run, err := repo.Get(ctx(t), "r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != models.RunSucceeded || string(run.Summary) != `{"jams":3}` {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
		t.Fatalf("finished_at not restored: %v", run.FinishedAt)
	}
	if run.Config.MaxJamDuration != models.DefaultMaxJamDuration {
		t.Fatalf("config not restored: %+v", run.Config)
	}
}

func TestRunGet_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL)).WithArgs("x").WillReturnRows(sqlmock.NewRows(runColumns))

	if _, err := repo.Get(ctx(t), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRunList_DropsSummaries(t *testing.T) {
	t.Parallel()

	db, mock := newDB(t)
	repo := NewRunSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(listRunsSQL)).
		WithArgs(defaultRunListLimit).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("r-2", "s-1", "running", 0.5, 0, 0, "{}", nil, "", 2, nil).
			AddRow("r-1", "s-1", "succeeded", 1.0, 0, 0, "{}", `{"jams":3}`, "", 1, 5))

	runs, err := repo.List(ctx(t), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r-2" || runs[1].Summary != nil {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}
