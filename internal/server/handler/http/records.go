package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/middleware"
	"github.com/atinyakov/PicTag/internal/models"
)

// maxRecordBody bounds record payloads, which may carry an inline preview.
const maxRecordBody = 16 << 20

// RecordService defines the owner-scoped record operations.
type RecordService interface {
	SaveAnalysis(ctx context.Context, p *models.Principal, a *models.Analysis) (string, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]models.Analysis, error)
	GetAnalysis(ctx context.Context, userID, id string) (*models.Analysis, error)
	DeleteAnalysis(ctx context.Context, userID, id string) error
	SaveGeneratedImage(ctx context.Context, p *models.Principal, g *models.GeneratedImage) (string, error)
}

// RecordHandler serves the analysis history and the generated image log.
// All routes expect BearerAuth to have run.
type RecordHandler struct {
	Records RecordService
	Log     *zap.Logger
}

type idResponse struct {
	ID string `json:"id"`
}

func principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, models.CodeUnauthenticated, "authentication required")
	}
	return p, ok
}

// ListAnalyses returns the caller's records, newest first. A missing or
// non-positive limit returns all of them.
func (h *RecordHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, models.CodeInvalidArgument, "limit must be an integer")
			return
		}
		limit = n
	}

	list, err := h.Records.ListAnalyses(r.Context(), p.UserID, limit)
	if err != nil {
		writeRecordError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateAnalysis stores a record for the caller.
func (h *RecordHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var a models.Analysis
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeInvalidArgument, "invalid request")
		return
	}

	id, err := h.Records.SaveAnalysis(r.Context(), p, &a)
	if err != nil {
		writeRecordError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// GetAnalysis returns one of the caller's records.
func (h *RecordHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	a, err := h.Records.GetAnalysis(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeRecordError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnalysis removes one of the caller's records.
func (h *RecordHandler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.Records.DeleteAnalysis(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		writeRecordError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateGeneratedImage appends to the caller's generation log.
func (h *RecordHandler) CreateGeneratedImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var g models.GeneratedImage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeInvalidArgument, "invalid request")
		return
	}

	id, err := h.Records.SaveGeneratedImage(r.Context(), p, &g)
	if err != nil {
		writeRecordError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}
