// Package repository provides PostgreSQL persistence for users, credentials
// and analysis records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint conflicts.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresUserRepository implements user account operations using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

const userColumns = `id, email, display_name, password_hash, COALESCE(google_sub, ''), disabled, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.GoogleSubject, &u.Disabled, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user. Emails are stored lower-cased.
// Returns models.ErrAlreadyExists when the email or Google subject is taken.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, u *models.User) error {
	var googleSub sql.NullString
	if u.GoogleSubject != "" {
		googleSub = sql.NullString{String: u.GoogleSubject, Valid: true}
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, google_sub)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, googleSub).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyExists
		}
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

// GetUserByID looks a user up by ID.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByGoogleSubject looks a user up by linked Google account.
func (r *PostgresUserRepository) GetUserByGoogleSubject(ctx context.Context, sub string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1`, sub)
	return scanUser(row)
}

// LinkGoogle attaches a Google subject to an existing user.
func (r *PostgresUserRepository) LinkGoogle(ctx context.Context, userID, sub string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET google_sub = $2 WHERE id = $1`, userID, sub)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyExists
		}
		return fmt.Errorf("LinkGoogle: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
