package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/PicTag/internal/models"
)

// PostgresTokenRepository stores hashed refresh and password reset tokens.
type PostgresTokenRepository struct {
	DB *sql.DB
}

// NewPostgresTokenRepository creates a new PostgresTokenRepository.
func NewPostgresTokenRepository(db *sql.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{DB: db}
}

// SaveRefreshToken stores the hash of a newly issued refresh token.
func (r *PostgresTokenRepository) SaveRefreshToken(ctx context.Context, hash, userID, provider string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, provider, expires_at)
		VALUES ($1, $2, $3, $4)
	`, hash, userID, provider, expiresAt)
	if err != nil {
		return fmt.Errorf("SaveRefreshToken: %w", err)
	}
	return nil
}

// ConsumeRefreshToken revokes a live refresh token and returns its owner and
// sign-in provider. Returns models.ErrNotFound for unknown, revoked or
// expired tokens, so each token can be redeemed once.
func (r *PostgresTokenRepository) ConsumeRefreshToken(ctx context.Context, hash string) (string, string, error) {
	var userID, provider string
	err := r.DB.QueryRowContext(ctx, `
		UPDATE refresh_tokens SET revoked = true
		WHERE token_hash = $1 AND revoked = false AND expires_at > now()
		RETURNING user_id, provider
	`, hash).Scan(&userID, &provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", models.ErrNotFound
		}
		return "", "", fmt.Errorf("ConsumeRefreshToken: %w", err)
	}
	return userID, provider, nil
}

// RevokeRefreshToken marks a refresh token as revoked. Unknown tokens are ignored.
func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token_hash = $1`, hash)
	return err
}

// SavePasswordReset stores the hash of a password reset token.
func (r *PostgresTokenRepository) SavePasswordReset(ctx context.Context, hash, userID string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, hash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("SavePasswordReset: %w", err)
	}
	return nil
}

// ResetPassword redeems a live reset token, stores the new password hash and
// revokes every refresh token of its owner in one transaction. The token
// stays usable when any step fails. Returns models.ErrNotFound for unknown,
// used or expired tokens.
func (r *PostgresTokenRepository) ResetPassword(ctx context.Context, resetHash string, passwordHash []byte) (string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		UPDATE password_resets SET used = true
		WHERE token_hash = $1 AND used = false AND expires_at > now()
		RETURNING user_id
	`, resetHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("ResetPassword: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return "", fmt.Errorf("ResetPassword: update password: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`, userID); err != nil {
		return "", fmt.Errorf("ResetPassword: revoke sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return userID, nil
}
