package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
)

// errorBody is the JSON error envelope of the auth and record routes.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeText answers with a plain text body, as the image routes do.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// writeAuthError maps identity failures to their status and code. Anything
// else is logged and reported as auth/internal-error.
func writeAuthError(w http.ResponseWriter, log *zap.Logger, err error) {
	var authErr *models.AuthError
	if errors.As(err, &authErr) {
		writeError(w, authErr.Status, authErr.Code, authErr.Message)
		return
	}
	log.Error("auth request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, models.CodeInternalError, "internal error")
}

// writeRecordError maps store failures to the document store error codes.
func writeRecordError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, models.CodeNotFound, "record not found")
	case errors.Is(err, models.ErrForbidden):
		writeError(w, http.StatusForbidden, models.CodePermissionDenied, "missing or insufficient permissions")
	default:
		log.Error("record request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
	}
}
