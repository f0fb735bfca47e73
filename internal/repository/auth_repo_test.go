package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"jammertime/internal/models"
)

func newMockUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewUserRepository(db), mock
}

func TestUserRepository_Create(t *testing.T) {
	cases := []struct {
		name    string
		result  driverResult
		execErr error
		wantID  int
		wantIs  error
		wantErr bool
	}{
		{name: "inserted", result: driverResult{id: 42}, wantID: 42},
		{name: "duplicate", execErr: errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), wantIs: ErrUsernameTaken, wantErr: true},
		{name: "exec error", execErr: errors.New("disk I/O error"), wantErr: true},
		{name: "last insert id error", result: driverResult{err: errors.New("no last id")}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockUserRepo(t)
			exp := mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).WithArgs("shiftlead", "hash")
			switch {
			case tc.execErr != nil:
				exp.WillReturnError(tc.execErr)
			case tc.result.err != nil:
				exp.WillReturnResult(sqlmock.NewErrorResult(tc.result.err))
			default:
				exp.WillReturnResult(sqlmock.NewResult(tc.result.id, 1))
			}

			id, err := repo.Create(context.Background(), "shiftlead", "hash")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
					t.Fatalf("expected %v, got %v", tc.wantIs, err)
				}
				if tc.wantIs == nil && errors.Is(err, ErrUsernameTaken) {
					t.Fatalf("plain failure reported as duplicate: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tc.wantID {
				t.Fatalf("id=%d want %d", id, tc.wantID)
			}
		})
	}
}

type driverResult struct {
	id  int64
	err error
}

func TestUserRepository_GetByUsername(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("shiftlead").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(7, "shiftlead", "hash"))

		u, err := repo.GetByUsername(context.Background(), "shiftlead")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := models.User{ID: 7, Username: "shiftlead", PasswordHash: "hash"}
		if u == nil || *u != want {
			t.Fatalf("got %+v, want %+v", u, want)
		}
	})

	t.Run("missing user is nil without error", func(t *testing.T) {
		repo, mock := newMockUserRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.GetByUsername(context.Background(), "ghost")
		if err != nil || u != nil {
			t.Fatalf("got (%+v, %v), want (nil, nil)", u, err)
		}
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		repo, mock := newMockUserRepo(t)
		boom := errors.New("database is locked")
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
			WithArgs("shiftlead").
			WillReturnError(boom)

		u, err := repo.GetByUsername(context.Background(), "shiftlead")
		if !errors.Is(err, boom) || u != nil {
			t.Fatalf("got (%+v, %v)", u, err)
		}
	})
}
