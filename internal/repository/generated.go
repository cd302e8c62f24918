package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/google/uuid"
)

// PostgresGeneratedImageRepository appends generated image log entries.
type PostgresGeneratedImageRepository struct {
	DB *sql.DB
}

// NewPostgresGeneratedImageRepository creates a new PostgresGeneratedImageRepository.
func NewPostgresGeneratedImageRepository(db *sql.DB) *PostgresGeneratedImageRepository {
	return &PostgresGeneratedImageRepository{DB: db}
}

// CreateGeneratedImage inserts a record, assigning its ID and server timestamp.
func (r *PostgresGeneratedImageRepository) CreateGeneratedImage(ctx context.Context, g *models.GeneratedImage) error {
	g.ID = uuid.NewString()
	var original sql.NullString
	if g.OriginalFileName != nil {
		original = sql.NullString{String: *g.OriginalFileName, Valid: true}
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO generated_images (
			id, user_id, user_email, prompt, revised_prompt, image_url, original_image_url,
			size, quality, style, based_on_analysis, original_file_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, g.ID, g.UserID, g.UserEmail, g.Prompt, g.RevisedPrompt, g.ImageURL, g.OriginalImageURL,
		g.Size, g.Quality, g.Style, g.BasedOnAnalysis, original).Scan(&g.Timestamp)
	if err != nil {
		return fmt.Errorf("CreateGeneratedImage: %w", err)
	}
	return nil
}
