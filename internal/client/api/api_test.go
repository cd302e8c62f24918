package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/PicTag/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func TestAnalyzeImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/AnalyzeImage", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		file, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("png-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caption":"A cat","tags":["cat","pet","cute"]}`))
	})

	res, err := c.AnalyzeImage(context.Background(), "tok", "cat.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "A cat", res.Caption)
	assert.Equal(t, []string{"cat", "pet", "cute"}, res.Tags)
}

func TestAnalyzeImageWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		http.Error(w, "Unauthorized: No authentication token provided.", http.StatusUnauthorized)
	})

	_, err := c.AnalyzeImage(context.Background(), "", "cat.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAnalyzeImageStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("File too large. Maximum size: 10 MB."))
	})

	_, err := c.AnalyzeImage(context.Background(), "tok", "big.png", "image/png", []byte("x"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "File too large. Maximum size: 10 MB.", se.Body)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(srv.URL, srv.Client())
	srv.Close()

	_, err := c.AnalyzeImage(context.Background(), "tok", "a.png", "image/png", []byte("x"))
	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)

	_, err = c.ListAnalyses(context.Background(), "tok", 1)
	assert.ErrorAs(t, err, &ne)
}

func TestGenerateImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/GenerateImage", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, GenerateRequest{IDToken: "tok", Prompt: "a red fox in snow", Size: "1024x1024", Quality: "standard", Style: "vivid"}, req)

		_ = json.NewEncoder(w).Encode(GenerateResponse{
			Success:       true,
			ImageURL:      "https://img.example/fox.png",
			Prompt:        req.Prompt,
			RevisedPrompt: "A red fox standing in fresh snow",
			Size:          req.Size,
		})
	})

	res, err := c.GenerateImage(context.Background(), GenerateRequest{
		IDToken: "tok", Prompt: "a red fox in snow", Size: "1024x1024", Quality: "standard", Style: "vivid",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://img.example/fox.png", res.ImageURL)
	assert.Equal(t, "A red fox standing in fresh snow", res.RevisedPrompt)
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("image"))
	})

	data, err := c.Download(context.Background(), c.BaseURL+"/fox.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), data)

	_, err = c.Download(context.Background(), c.BaseURL+"/missing.png")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func writeCode(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: msg})
}

func TestRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method + " " + r.URL.Path {
		case "GET /api/analyses":
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			_ = json.NewEncoder(w).Encode([]models.Analysis{{ID: "a1", Caption: "A cat"}})
		case "GET /api/analyses/a1":
			_ = json.NewEncoder(w).Encode(models.Analysis{ID: "a1", Tags: []string{"cat"}})
		case "GET /api/analyses/gone":
			writeCode(w, http.StatusNotFound, models.CodeNotFound, "record not found")
		case "DELETE /api/analyses/a1":
			w.WriteHeader(http.StatusNoContent)
		case "DELETE /api/analyses/theirs":
			writeCode(w, http.StatusForbidden, models.CodePermissionDenied, "missing or insufficient permissions")
		case "POST /api/analyses":
			var a models.Analysis
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&a))
			assert.Equal(t, "cat.png", a.FileName)
			writeJSON(w, http.StatusCreated, idResponse{ID: "new"})
		case "POST /api/generated-images":
			writeCode(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	list, err := c.ListAnalyses(ctx, "tok", 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)

	a, err := c.GetAnalysis(ctx, "tok", "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, a.Tags)

	_, err = c.GetAnalysis(ctx, "tok", "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, c.DeleteAnalysis(ctx, "tok", "a1"))
	assert.ErrorIs(t, c.DeleteAnalysis(ctx, "tok", "theirs"), ErrPermissionDenied)

	id, err := c.SaveAnalysis(ctx, "tok", &models.Analysis{FileName: "cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "new", id)

	_, err = c.SaveGeneratedImage(ctx, "tok", &models.GeneratedImage{Prompt: "p"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "internal error", se.Body)
}

func TestListAnalysesUnlimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`[]`))
	})
	list, err := c.ListAnalyses(context.Background(), "tok", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCode(w, http.StatusUnauthorized, models.CodeUnauthenticated, "authentication required")
	})
	_, err := c.ListAnalyses(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestWriteResultLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	WriteResult{Collection: CollectionAnalyses, ID: "a1"}.Log(log)
	WriteResult{Collection: CollectionGeneratedImages, Err: errors.New("boom")}.Log(log)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "record saved", entries[0].Message)
	assert.Equal(t, "a1", entries[0].ContextMap()["id"])
	assert.Equal(t, "record write failed", entries[1].Message)
	assert.Equal(t, CollectionGeneratedImages, entries[1].ContextMap()["collection"])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
