package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smart_ventilation/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure implementation of Authorization interface at compile time.
var _ Authorization = (*UserRepository)(nil)

const (
	insertUserSQL        = `INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)`
	selectUserByEmailSQL = `SELECT id, name, email, password_hash FROM users WHERE email = ?`
)

// Create inserts a new user and returns its ID.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, name, email, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", email, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", email, err)
	}
	return lastID, nil
}

// GetByEmail fetches a user by email. Returns (nil, nil) if not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, selectUserByEmailSQL, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user %q: %w", email, err)
	}
	return &u, nil
}
