package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/config"
	"github.com/atinyakov/PicTag/internal/middleware"
	"github.com/atinyakov/PicTag/internal/models"
)

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	rl, err := middleware.NewClientLimiter(limit)
	require.NoError(t, err)

	log := zap.NewNop()
	return NewRouter(
		&AuthHandler{AuthService: &fakeAuthService{session: testSession()}, Log: log},
		&RecordHandler{Records: &fakeRecords{analyses: map[string]models.Analysis{}}, Log: log},
		&ImageHandler{Images: &fakeImages{}, Verifier: verifier, Log: log},
		&ConfigHandler{Report: func() []config.Check { return nil }},
		RouterOptions{
			AllowedOrigins: []string{"https://app.example"},
			Verifier:       verifier,
			AuthLimit:      rl.Handler,
		},
		log,
	)
}

func TestNewRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNewRouter_ProtectedRoutes(t *testing.T) {
	h := newTestRouter(t, 10)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_RequiresJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(`email=a`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestNewRouter_AuthRateLimit(t *testing.T) {
	h := newTestRouter(t, 2)
	signIn := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(`{"email":"a@b.co","password":"secret1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, signIn())
	assert.Equal(t, http.StatusOK, signIn())
	assert.Equal(t, http.StatusTooManyRequests, signIn())
}

func TestNewRouter_AuthRateLimitPerForwardedClient(t *testing.T) {
	h := newTestRouter(t, 1)
	signIn := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(`{"email":"a@b.co","password":"secret1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", client)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, signIn("203.0.113.7"))
	assert.Equal(t, http.StatusOK, signIn("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, signIn("203.0.113.7"))
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/GenerateImage", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()

	newTestRouter(t, 10).ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestNewRouter_TestConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, 10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/TestConfig", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
