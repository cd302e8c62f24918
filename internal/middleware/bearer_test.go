package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atinyakov/PicTag/internal/models"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*models.Principal, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &models.Principal{UserID: "alice", Email: "alice@example.com"}, nil
}

func TestBearerAuth_NoToken(t *testing.T) {
	dummy := &dummyHandler{}
	rec := httptest.NewRecorder()
	BearerAuth(fakeVerifier{})(dummy).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))

	assert.False(t, dummy.called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"code":"unauthenticated","message":"no authentication token provided"}`, rec.Body.String())
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	dummy := &dummyHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	BearerAuth(fakeVerifier{})(dummy).ServeHTTP(rec, req)

	assert.False(t, dummy.called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_ValidToken(t *testing.T) {
	dummy := &dummyHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	BearerAuth(fakeVerifier{})(dummy).ServeHTTP(rec, req)

	assert.True(t, dummy.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	p, ok := PrincipalFromContext(dummy.ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "alice@example.com", p.Email)
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"Bearer":        "",
		"Bearer ":       "",
		"Basic abc":     "",
		"Bearer abc":    "abc",
		"BEARER  abc  ": "abc",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractBearer(req), "header %q", header)
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
	_, ok = PrincipalFromContext(WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}
