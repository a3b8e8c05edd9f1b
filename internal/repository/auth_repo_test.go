package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"smart_ventilation/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUserRepository_Create_ReturnsInsertID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Alice", "alice@example.com", "hashed").
		WillReturnResult(sqlmock.NewResult(5, 1))

	id, err := repo.Create(context.Background(), "Alice", "alice@example.com", "hashed")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != 5 {
		t.Fatalf("Create() id = %d, want 5", id)
	}
}

func TestUserRepository_Create_ExecErrorPropagated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("constraint failed"))

	if _, err := repo.Create(context.Background(), "Alice", "alice@example.com", "hashed"); err == nil {
		t.Fatalf("Create() expected error, got nil")
	}
}

func TestUserRepository_GetByEmail_HappyPath(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash"}).
		AddRow(int64(5), "Alice", "alice@example.com", "hashed")

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if u == nil || u.ID != 5 || u.PasswordHash != "hashed" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestUserRepository_GetByEmail_NotFoundIsNilNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() unexpected error: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user for unknown email, got %+v", u)
	}
}
