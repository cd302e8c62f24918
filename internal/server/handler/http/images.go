package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/middleware"
	"github.com/atinyakov/PicTag/internal/models"
	"github.com/atinyakov/PicTag/internal/service"
)

// Plain text answers of the image routes.
const (
	msgNoToken          = "Unauthorized: No authentication token provided."
	msgBadToken         = "Unauthorized: Invalid or expired token. Please log in."
	msgNotConfigured    = "Server error: image provider keys not configured."
	msgInvalidJSON      = "Invalid JSON in request body."
	msgContentPolicy    = "Content policy violation: Your prompt was rejected by the safety system."
	msgNoFile           = "No file uploaded. Please provide a 'file' field."
	msgFileTooLarge     = "File too large. Maximum size: 10 MB."
	generationErrPrefix = "Error during image generation: "
	analysisErrPrefix   = "Error during image analysis: "
	maxErrorDetail      = 200
)

// ImageService defines the analysis and generation operations.
type ImageService interface {
	Configured() bool
	Analyze(ctx context.Context, p *models.Principal, image []byte, contentType string) (*models.ImageDescription, error)
	Generate(ctx context.Context, p *models.Principal, req models.GenerateRequest) (*models.GenerateResult, error)
}

// ImageHandler serves the analysis and generation endpoints. They verify
// credentials themselves because the generation token may travel in the body.
type ImageHandler struct {
	Images   ImageService
	Verifier middleware.Verifier
	Log      *zap.Logger
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (h *ImageHandler) authenticate(w http.ResponseWriter, token string) (*models.Principal, bool) {
	if token == "" {
		h.Log.Warn("no authentication token provided")
		writeText(w, http.StatusUnauthorized, msgNoToken)
		return nil, false
	}
	p, err := h.Verifier.Verify(token)
	if err != nil {
		h.Log.Warn("token verification failed", zap.Error(err))
		writeText(w, http.StatusUnauthorized, msgBadToken)
		return nil, false
	}
	return p, true
}

// AnalyzeImage captions and tags a multipart "file" upload.
func (h *ImageHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, middleware.ExtractBearer(r))
	if !ok {
		return
	}

	const maxBody = service.MaxUploadBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > maxBody {
			writeText(w, http.StatusBadRequest, msgFileTooLarge)
			return
		}
		writeText(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
	if err != nil {
		writeText(w, http.StatusBadRequest, msgNoFile)
		return
	}

	desc, err := h.Images.Analyze(r.Context(), p, data, http.DetectContentType(data))
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			writeText(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, models.ErrProviderNotConfigured):
			h.Log.Error("image provider is not configured")
			writeText(w, http.StatusInternalServerError, msgNotConfigured)
		default:
			h.Log.Error("image analysis failed", zap.String("user_id", p.UserID), zap.Error(err))
			writeText(w, http.StatusInternalServerError, analysisErrPrefix+truncate(err.Error(), maxErrorDetail))
		}
		return
	}

	h.Log.Info("image analyzed", zap.String("user_id", p.UserID), zap.Int("tags", len(desc.Tags)))
	writeJSON(w, http.StatusOK, desc)
}

// GenerateRequest is the payload of the generation endpoint. The ID token may
// be sent in the body because it can exceed comfortable header sizes.
type GenerateRequest struct {
	IDToken string `json:"idToken"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

// GenerateResponse is the successful answer of the generation endpoint.
type GenerateResponse struct {
	Success       bool   `json:"success"`
	ImageURL      string `json:"image_url"`
	Prompt        string `json:"prompt"`
	RevisedPrompt string `json:"revised_prompt"`
	Size          string `json:"size"`
	Quality       string `json:"quality"`
	Style         string `json:"style"`
	UserEmail     string `json:"user_email"`
}

// GenerateImage creates one image from a prompt.
func (h *ImageHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	var req GenerateRequest
	jsonErr := json.Unmarshal(bytes.TrimSpace(body), &req)

	token := req.IDToken
	if token == "" {
		token = middleware.ExtractBearer(r)
	}
	p, ok := h.authenticate(w, token)
	if !ok {
		return
	}
	if !h.Images.Configured() {
		h.Log.Error("image provider is not configured")
		writeText(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}
	if jsonErr != nil {
		writeText(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	normalized, err := service.NormalizeGenerateRequest(models.GenerateRequest{
		Prompt:  req.Prompt,
		Size:    req.Size,
		Quality: req.Quality,
		Style:   req.Style,
	})
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Images.Generate(r.Context(), p, normalized)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrContentPolicy):
			h.Log.Warn("content policy violation", zap.String("user_id", p.UserID))
			writeText(w, http.StatusBadRequest, msgContentPolicy)
		case errors.Is(err, models.ErrProviderNotConfigured):
			writeText(w, http.StatusInternalServerError, msgNotConfigured)
		default:
			h.Log.Error("image generation failed", zap.String("user_id", p.UserID), zap.Error(err))
			writeText(w, http.StatusInternalServerError, generationErrPrefix+truncate(err.Error(), maxErrorDetail))
		}
		return
	}

	email := p.Email
	if email == "" {
		email = "Unknown"
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:       true,
		ImageURL:      res.ImageURL,
		Prompt:        normalized.Prompt,
		RevisedPrompt: res.RevisedPrompt,
		Size:          normalized.Size,
		Quality:       normalized.Quality,
		Style:         normalized.Style,
		UserEmail:     email,
	})
}
