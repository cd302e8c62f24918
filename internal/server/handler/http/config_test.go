package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atinyakov/PicTag/internal/config"
)

func TestConfigHandler_TestConfig(t *testing.T) {
	h := &ConfigHandler{Report: func() []config.Check {
		return []config.Check{{Name: "OPENAI_API_KEY", Set: true}, {Name: "DATABASE_DSN", Set: false}}
	}}
	rec := httptest.NewRecorder()
	h.TestConfig(rec, httptest.NewRequest(http.MethodGet, "/api/TestConfig", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "OPENAI_API_KEY: SET\nDATABASE_DSN: MISSING\n", rec.Body.String())
}
