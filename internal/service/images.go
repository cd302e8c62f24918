package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/atinyakov/PicTag/internal/objectstore"
)

const (
	// MaxUploadBytes caps the size of an image sent for analysis.
	MaxUploadBytes = 10 << 20
	// MaxPromptLength caps the generation prompt, in characters.
	MaxPromptLength = 1000

	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	DefaultStyle   = "vivid"
)

// AllowedSizes lists the accepted generation sizes.
var AllowedSizes = []string{"1024x1024", "1792x1024", "1024x1792"}

var uploadExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// ImageProvider captions images and generates new ones.
type ImageProvider interface {
	Describe(ctx context.Context, image []byte, contentType string) (*models.ImageDescription, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error)
}

// UploadStore archives uploads and returns a link to them.
type UploadStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageService runs analysis and generation requests against the provider.
type ImageService struct {
	provider ImageProvider
	store    UploadStore
	log      *zap.Logger
}

// NewImageService constructs an ImageService. provider is nil when no keys
// are configured; store is optional.
func NewImageService(provider ImageProvider, store UploadStore, log *zap.Logger) *ImageService {
	return &ImageService{provider: provider, store: store, log: log}
}

// Configured reports whether an image provider is available.
func (s *ImageService) Configured() bool {
	return s.provider != nil
}

// Analyze captions and tags an uploaded JPEG or PNG image. When an upload
// store is configured the image is archived and ImageURL links to it;
// archive failures are logged only.
func (s *ImageService) Analyze(ctx context.Context, p *models.Principal, image []byte, contentType string) (*models.ImageDescription, error) {
	ext, ok := uploadExtensions[contentType]
	if !ok {
		return nil, &models.ValidationError{Message: "Unsupported file type. Only JPEG and PNG images are allowed."}
	}
	if len(image) == 0 {
		return nil, &models.ValidationError{Message: "No file uploaded. Please provide a 'file' field."}
	}
	if len(image) > MaxUploadBytes {
		return nil, &models.ValidationError{Message: "File too large. Maximum size: 10 MB."}
	}
	if s.provider == nil {
		return nil, models.ErrProviderNotConfigured
	}

	desc, err := s.provider.Describe(ctx, image, contentType)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		link, err := s.store.Put(ctx, objectstore.UploadKey(p.UserID, ext), image, contentType)
		if err != nil {
			s.log.Warn("failed to archive upload", zap.String("user_id", p.UserID), zap.Error(err))
		} else {
			desc.ImageURL = link
		}
	}
	return desc, nil
}

// NormalizeGenerateRequest trims the prompt, applies defaults and validates
// the prompt and size. Quality and style are passed through as given.
func NormalizeGenerateRequest(req models.GenerateRequest) (models.GenerateRequest, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Size == "" {
		req.Size = DefaultSize
	}
	if req.Quality == "" {
		req.Quality = DefaultQuality
	}
	if req.Style == "" {
		req.Style = DefaultStyle
	}

	if req.Prompt == "" {
		return req, &models.ValidationError{Message: "No prompt provided. Please provide a 'prompt' field."}
	}
	if utf8.RuneCountInString(req.Prompt) > MaxPromptLength {
		return req, &models.ValidationError{
			Message: fmt.Sprintf("Prompt too long. Maximum length: %d characters.", MaxPromptLength),
		}
	}
	if !slices.Contains(AllowedSizes, req.Size) {
		return req, &models.ValidationError{
			Message: "Invalid size. Allowed sizes: " + strings.Join(AllowedSizes, ", "),
		}
	}
	return req, nil
}

// Generate creates one image. The revised prompt falls back to the prompt
// when the provider returns none.
func (s *ImageService) Generate(ctx context.Context, p *models.Principal, req models.GenerateRequest) (*models.GenerateResult, error) {
	if s.provider == nil {
		return nil, models.ErrProviderNotConfigured
	}
	req, err := NormalizeGenerateRequest(req)
	if err != nil {
		return nil, err
	}

	s.log.Info("generating image",
		zap.String("user_id", p.UserID),
		zap.String("size", req.Size),
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)))

	res, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.RevisedPrompt == "" {
		res.RevisedPrompt = req.Prompt
	}
	return res, nil
}
