// Package repository provides SQL persistence for portal users and items.
// Queries use $N placeholders and run on both PostgreSQL and SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/GophMaps/internal/models"
)

// ErrDuplicate is returned when a row with the same key already exists.
var ErrDuplicate = errors.New("already exists")

// UserRepository stores portal accounts.
type UserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewUserRepository creates a UserRepository with the given database connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// UserExists checks whether a user with the specified username exists.
func (r *UserRepository) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts u. It returns ErrDuplicate if the username is taken.
func (r *UserRepository) CreateUser(ctx context.Context, u models.User) error {
	res, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash, created) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, u.Created,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", u.Username, ErrDuplicate)
	}
	return nil
}

// GetUser returns the user with the given username, or nil if there is none.
func (r *UserRepository) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, created FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
