package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	session   *models.AuthSession
	err       error
	gotEmail  string
	gotCode   string
	signedOut string
}

func (f *fakeAuthService) SignUp(_ context.Context, email, _ string) (*models.AuthSession, error) {
	f.gotEmail = email
	return f.session, f.err
}
func (f *fakeAuthService) SignIn(_ context.Context, email, _ string) (*models.AuthSession, error) {
	f.gotEmail = email
	return f.session, f.err
}
func (f *fakeAuthService) GoogleAuthURL(state string) (string, error) {
	return "https://accounts.example/auth?state=" + state, f.err
}
func (f *fakeAuthService) SignInWithGoogle(_ context.Context, code string) (*models.AuthSession, error) {
	f.gotCode = code
	return f.session, f.err
}
func (f *fakeAuthService) Refresh(context.Context, string) (*models.AuthSession, error) {
	return f.session, f.err
}
func (f *fakeAuthService) SignOut(_ context.Context, token string) { f.signedOut = token }
func (f *fakeAuthService) SendPasswordReset(_ context.Context, email string) error {
	f.gotEmail = email
	return f.err
}
func (f *fakeAuthService) ConfirmPasswordReset(context.Context, string, string) error {
	return f.err
}

func testSession() *models.AuthSession {
	return &models.AuthSession{
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		Provider:     models.ProviderPassword,
		User:         &models.User{ID: "u1", Email: "bob@example.com", DisplayName: "Bob"},
	}
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h(rec, req)
	return rec
}

func TestAuthHandler_SignUp(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
		expectedBody string
	}{
		{
			name:         "invalid JSON",
			body:         `not a json`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"code":"invalid-argument","message":"invalid request"}`,
		},
		{
			name:         "email in use",
			body:         `{"email":"bob@example.com","password":"secret1"}`,
			service:      &fakeAuthService{err: models.ErrEmailInUse},
			expectedCode: http.StatusConflict,
			expectedBody: `{"code":"auth/email-already-in-use","message":"email address is already in use"}`,
		},
		{
			name:         "weak password",
			body:         `{"email":"bob@example.com","password":"1"}`,
			service:      &fakeAuthService{err: models.ErrWeakPassword},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"code":"auth/weak-password","message":"password should be at least 6 characters"}`,
		},
		{
			name:         "unexpected error",
			body:         `{"email":"bob@example.com","password":"secret1"}`,
			service:      &fakeAuthService{err: errors.New("db down")},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"code":"auth/internal-error","message":"internal error"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &AuthHandler{AuthService: tc.service, Log: zap.NewNop()}
			rec := postJSON(h.SignUp, tc.body)
			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestAuthHandler_SignUp_Success(t *testing.T) {
	svc := &fakeAuthService{session: testSession()}
	h := &AuthHandler{AuthService: svc, Log: zap.NewNop()}

	rec := postJSON(h.SignUp, `{"email":"bob@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "id-token", resp.IDToken)
	assert.Equal(t, "refresh-token", resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.UID)
	assert.Equal(t, "Bob", resp.User.DisplayName)
	assert.InDelta(t, 3600, resp.ExpiresIn, 5)
	assert.Equal(t, "bob@example.com", svc.gotEmail)
}

func TestAuthHandler_SignIn(t *testing.T) {
	h := &AuthHandler{AuthService: &fakeAuthService{err: models.ErrInvalidCredential}, Log: zap.NewNop()}
	rec := postJSON(h.SignIn, `{"email":"bob@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeInvalidCredential)

	h = &AuthHandler{AuthService: &fakeAuthService{session: testSession()}, Log: zap.NewNop()}
	rec = postJSON(h.SignIn, `{"email":"bob@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_Google(t *testing.T) {
	svc := &fakeAuthService{session: testSession()}
	h := &AuthHandler{AuthService: svc, Log: zap.NewNop()}

	rec := httptest.NewRecorder()
	h.GoogleURL(rec, httptest.NewRequest(http.MethodGet, "/?state=xyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://accounts.example/auth?state=xyz"}`, rec.Body.String())

	rec = postJSON(h.GoogleSignIn, `{"code":"abc"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", svc.gotCode)

	svc.err = models.ErrAccountExists
	rec = postJSON(h.GoogleSignIn, `{"code":"abc"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeAccountExistsDifferent)
}

func TestAuthHandler_RefreshAndSignOut(t *testing.T) {
	svc := &fakeAuthService{err: models.ErrInvalidRefreshToken}
	h := &AuthHandler{AuthService: svc, Log: zap.NewNop()}

	rec := postJSON(h.Refresh, `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(h.SignOut, `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old", svc.signedOut)

	rec = postJSON(h.SignOut, `garbage`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	svc := &fakeAuthService{err: models.ErrUserNotFound}
	h := &AuthHandler{AuthService: svc, Log: zap.NewNop()}

	rec := postJSON(h.SendPasswordReset, `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeUserNotFound)

	svc.err = nil
	rec = postJSON(h.SendPasswordReset, `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.err = models.ErrInvalidActionCode
	rec = postJSON(h.ConfirmPasswordReset, `{"token":"t","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeInvalidActionCode)
}
