// Package middleware provides HTTP middlewares for authentication, rate
// limiting and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/PicTag/internal/models"
)

type ctxKey string

const (
	principalKey ctxKey = "principal"
	holderKey    ctxKey = "user-holder"
)

// userHolder lets the logging middleware learn who made a request once an
// inner middleware authenticates it.
type userHolder struct {
	userID string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

// Verifier validates a bearer credential and returns its owner.
type Verifier interface {
	Verify(token string) (*models.Principal, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" header.
//
// On success the authenticated principal is stored in the request context,
// so handlers never trust a caller-supplied user id.
func BearerAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, models.CodeUnauthenticated, "no authentication token provided")
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, models.CodeUnauthenticated, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// ExtractBearer returns the token from the Authorization header, or "".
func ExtractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	if h, ok := ctx.Value(holderKey).(*userHolder); ok && p != nil {
		h.userID = p.UserID
	}
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	return p, ok && p != nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
