// Package http provides the HTTP handlers of the PicTag API: identity,
// analysis records and the image endpoints.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
)

// AuthService defines the identity operations required by the HTTP handlers.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthSession, error)
	GoogleAuthURL(state string) (string, error)
	SignInWithGoogle(ctx context.Context, code string) (*models.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error)
	SignOut(ctx context.Context, refreshToken string)
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

// AuthHandler handles HTTP requests for sign-up, sign-in and credential
// management.
type AuthHandler struct {
	AuthService AuthService
	Log         *zap.Logger
}

// CredentialsRequest is the payload of sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes the signed-in user.
type UserResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SessionResponse is the credential bundle returned after authentication.
type SessionResponse struct {
	IDToken      string       `json:"idToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	Provider     string       `json:"providerId"`
	User         UserResponse `json:"user"`
}

func newSessionResponse(s *models.AuthSession) SessionResponse {
	expires := int64(time.Until(s.ExpiresAt).Seconds())
	if expires < 0 {
		expires = 0
	}
	return SessionResponse{
		IDToken:      s.IDToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    expires,
		Provider:     s.Provider,
		User: UserResponse{
			UID:         s.User.ID,
			Email:       s.User.Email,
			DisplayName: s.User.DisplayName,
		},
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v) == nil
}

func (h *AuthHandler) invalidRequest(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, models.CodeInvalidArgument, "invalid request")
}

// SignUp registers a password account and returns 201 with credentials.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	sess, err := h.AuthService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// SignIn verifies an email and password.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	sess, err := h.AuthService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// GoogleURL returns the Google consent page URL.
func (h *AuthHandler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.AuthService.GoogleAuthURL(r.URL.Query().Get("state"))
	if err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// GoogleSignIn exchanges a Google authorization code for credentials.
func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	sess, err := h.AuthService.SignInWithGoogle(r.Context(), req.Code)
	if err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates a refresh token into a new credential bundle.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	sess, err := h.AuthService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// SignOut revokes a refresh token. It always succeeds.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decode(w, r, &req)
	h.AuthService.SignOut(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SendPasswordReset mails a reset link.
func (h *AuthHandler) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	if err := h.AuthService.SendPasswordReset(r.Context(), req.Email); err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ConfirmPasswordReset sets a new password using a reset token.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		h.invalidRequest(w)
		return
	}
	if err := h.AuthService.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		writeAuthError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
