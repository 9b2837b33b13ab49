package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atinyakov/GophMaps/internal/models"
)

func setupUserMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewUserRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestUserExists(t *testing.T) {
	for _, want := range []bool{true, false} {
		repo, mock, cleanup := setupUserMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`)).
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(want))

		got, err := repo.UserExists(context.Background(), "user1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("UserExists = %v, want %v", got, want)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		cleanup()
	}
}

func TestUserExists_Error(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`)).
		WithArgs("user3").
		WillReturnError(errors.New("query failed"))

	if _, err := repo.UserExists(context.Background(), "user3"); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestCreateUser(t *testing.T) {
	u := models.User{ID: "u1", Username: "alice", PasswordHash: []byte("hash"), Created: 42}
	tests := []struct {
		name    string
		result  driver.Result
		execErr error
		wantErr error
		anyErr  bool
	}{
		{name: "success", result: sqlmock.NewResult(1, 1)},
		{name: "duplicate", result: sqlmock.NewResult(0, 0), wantErr: ErrDuplicate},
		{name: "exec error", execErr: errors.New("insert failed"), anyErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserMock(t)
			defer cleanup()

			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, username, password_hash, created) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`)).
				WithArgs("u1", "alice", []byte("hash"), int64(42))
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.CreateUser(context.Background(), u)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("expected error, got nil")
				}
			default:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`SELECT id, username, password_hash, created FROM users WHERE username = $1`)
	mock.ExpectQuery(query).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created"}).
			AddRow("u1", "alice", []byte("hash"), int64(7)))
	mock.ExpectQuery(query).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created"}))

	u, err := repo.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != "u1" || string(u.PasswordHash) != "hash" || u.Created != 7 {
		t.Errorf("unexpected user: %+v", u)
	}

	u, err = repo.GetUser(context.Background(), "nobody")
	if err != nil || u != nil {
		t.Errorf("expected nil user and no error, got %+v %v", u, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
