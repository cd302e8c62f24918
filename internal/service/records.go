package service

import (
	"context"
	"errors"
	"strings"

	"github.com/atinyakov/PicTag/internal/models"
)

// AnalysisRepository defines the persistence operations on analysis records.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	ListAnalyses(ctx context.Context, userID string, limit int) ([]models.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	DeleteAnalysis(ctx context.Context, userID, id string) error
}

// GeneratedImageRepository stores the generated image log.
type GeneratedImageRepository interface {
	CreateGeneratedImage(ctx context.Context, g *models.GeneratedImage) error
}

// RecordService scopes record access to the authenticated owner.
type RecordService struct {
	analyses  AnalysisRepository
	generated GeneratedImageRepository
}

// NewRecordService constructs a RecordService.
func NewRecordService(analyses AnalysisRepository, generated GeneratedImageRepository) *RecordService {
	return &RecordService{analyses: analyses, generated: generated}
}

// SaveAnalysis stores a record owned by p and returns its ID. Owner fields
// supplied by the caller are ignored.
func (s *RecordService) SaveAnalysis(ctx context.Context, p *models.Principal, a *models.Analysis) (string, error) {
	a.UserID = p.UserID
	a.UserEmail = p.Email
	if strings.TrimSpace(a.FileName) == "" {
		a.FileName = "Unknown file"
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if err := s.analyses.CreateAnalysis(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

// ListAnalyses returns the owner's records newest first. limit <= 0 means all.
func (s *RecordService) ListAnalyses(ctx context.Context, userID string, limit int) ([]models.Analysis, error) {
	return s.analyses.ListAnalyses(ctx, userID, limit)
}

// GetAnalysis returns a record if userID owns it, models.ErrForbidden if
// someone else does.
func (s *RecordService) GetAnalysis(ctx context.Context, userID, id string) (*models.Analysis, error) {
	a, err := s.analyses.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, models.ErrForbidden
	}
	return a, nil
}

// DeleteAnalysis removes a record owned by userID.
func (s *RecordService) DeleteAnalysis(ctx context.Context, userID, id string) error {
	if _, err := s.GetAnalysis(ctx, userID, id); err != nil {
		return err
	}
	err := s.analyses.DeleteAnalysis(ctx, userID, id)
	if errors.Is(err, models.ErrNotFound) {
		// deleted concurrently
		return nil
	}
	return err
}

// SaveGeneratedImage appends an entry to the owner's generation log.
func (s *RecordService) SaveGeneratedImage(ctx context.Context, p *models.Principal, g *models.GeneratedImage) (string, error) {
	g.UserID = p.UserID
	g.UserEmail = p.Email
	if err := s.generated.CreateGeneratedImage(ctx, g); err != nil {
		return "", err
	}
	return g.ID, nil
}
