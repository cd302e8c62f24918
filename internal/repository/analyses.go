package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresAnalysisRepository implements analysis record operations against a PostgreSQL database.
type PostgresAnalysisRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAnalysisRepository creates a new PostgresAnalysisRepository using the provided *sql.DB.
func NewPostgresAnalysisRepository(db *sql.DB) *PostgresAnalysisRepository {
	return &PostgresAnalysisRepository{DB: db}
}

const analysisColumns = `id, user_id, user_email, file_name, caption, tags, image_preview, created_at`

func scanAnalysis(row interface{ Scan(...any) error }) (*models.Analysis, error) {
	var a models.Analysis
	var tags pq.StringArray
	if err := row.Scan(&a.ID, &a.UserID, &a.UserEmail, &a.FileName, &a.Caption, &tags, &a.ImagePreview, &a.Timestamp); err != nil {
		return nil, err
	}
	a.Tags = []string(tags)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return &a, nil
}

// CreateAnalysis inserts a record, assigning its ID and server timestamp.
func (r *PostgresAnalysisRepository) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	a.ID = uuid.NewString()
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO analyses (id, user_id, user_email, file_name, caption, tags, image_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.UserID, a.UserEmail, a.FileName, a.Caption, pq.Array(tags), a.ImagePreview).Scan(&a.Timestamp)
	if err != nil {
		return fmt.Errorf("CreateAnalysis: %w", err)
	}
	return nil
}

// ListAnalyses returns the user's records newest first. A limit <= 0 returns all of them.
func (r *PostgresAnalysisRepository) ListAnalyses(ctx context.Context, userID string, limit int) ([]models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListAnalyses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAnalyses: %w", err)
	}
	return out, nil
}

// GetAnalysis fetches a record by ID regardless of owner, so callers can
// tell a missing record from someone else's.
func (r *PostgresAnalysisRepository) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("GetAnalysis: %w", err)
	}
	return a, nil
}

// DeleteAnalysis removes a record owned by userID.
func (r *PostgresAnalysisRepository) DeleteAnalysis(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteAnalysis: %w", err)
	}
	return expectOneRow(res)
}
