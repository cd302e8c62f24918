package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/atinyakov/PicTag/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type tokenVerifier map[string]*models.Principal

func (v tokenVerifier) Verify(token string) (*models.Principal, error) {
	if p, ok := v[token]; ok {
		return p, nil
	}
	return nil, errors.New("invalid token")
}

var verifier = tokenVerifier{"good": {UserID: "alice", Email: "alice@example.com"}}

// fakeImages implements ImageService for testing.
type fakeImages struct {
	configured  bool
	desc        *models.ImageDescription
	result      *models.GenerateResult
	err         error
	gotType     string
	gotGenerate models.GenerateRequest
}

func (f *fakeImages) Configured() bool { return f.configured }

func (f *fakeImages) Analyze(_ context.Context, _ *models.Principal, _ []byte, contentType string) (*models.ImageDescription, error) {
	f.gotType = contentType
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, &models.ValidationError{Message: "Unsupported file type. Only JPEG and PNG images are allowed."}
	}
	return f.desc, f.err
}

func (f *fakeImages) Generate(_ context.Context, _ *models.Principal, req models.GenerateRequest) (*models.GenerateResult, error) {
	f.gotGenerate = req
	return f.result, f.err
}

func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "cat.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/AnalyzeImage", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImageHandler_AnalyzeImage(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		field        string
		data         []byte
		images       *fakeImages
		expectedCode int
		expectedBody string
	}{
		{
			name:         "no token",
			field:        "file",
			data:         pngHeader,
			images:       &fakeImages{},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "Unauthorized: No authentication token provided.",
		},
		{
			name:         "bad token",
			token:        "bad",
			field:        "file",
			data:         pngHeader,
			images:       &fakeImages{},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "Unauthorized: Invalid or expired token. Please log in.",
		},
		{
			name:         "missing file",
			token:        "good",
			field:        "image",
			data:         pngHeader,
			images:       &fakeImages{},
			expectedCode: http.StatusBadRequest,
			expectedBody: "No file uploaded. Please provide a 'file' field.",
		},
		{
			name:         "unsupported type",
			token:        "good",
			field:        "file",
			data:         []byte("GIF89a......"),
			images:       &fakeImages{},
			expectedCode: http.StatusBadRequest,
			expectedBody: "Unsupported file type. Only JPEG and PNG images are allowed.",
		},
		{
			name:         "not configured",
			token:        "good",
			field:        "file",
			data:         pngHeader,
			images:       &fakeImages{err: models.ErrProviderNotConfigured},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Server error: image provider keys not configured.",
		},
		{
			name:         "provider failure",
			token:        "good",
			field:        "file",
			data:         pngHeader,
			images:       &fakeImages{err: errors.New("upstream " + strings.Repeat("x", 300))},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Error during image analysis: upstream " + strings.Repeat("x", 191),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &ImageHandler{Images: tc.images, Verifier: verifier, Log: zap.NewNop()}
			req := multipartRequest(t, tc.field, tc.data)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.AnalyzeImage(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestImageHandler_AnalyzeImage_Success(t *testing.T) {
	images := &fakeImages{desc: &models.ImageDescription{Caption: "a cat", Tags: []string{"cat", "pet"}}}
	h := &ImageHandler{Images: images, Verifier: verifier, Log: zap.NewNop()}
	req := multipartRequest(t, "file", pngHeader)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()

	h.AnalyzeImage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"caption":"a cat","tags":["cat","pet"]}`, rec.Body.String())
	assert.Equal(t, "image/png", images.gotType)
}

func TestImageHandler_AnalyzeImage_TooLarge(t *testing.T) {
	h := &ImageHandler{Images: &fakeImages{}, Verifier: verifier, Log: zap.NewNop()}
	req := multipartRequest(t, "file", append(pngHeader, make([]byte, service.MaxUploadBytes+2<<20)...))
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()

	h.AnalyzeImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large. Maximum size: 10 MB.", rec.Body.String())
}

func generate(h *ImageHandler, body, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/GenerateImage", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", "Bearer "+header)
	}
	rec := httptest.NewRecorder()
	h.GenerateImage(rec, req)
	return rec
}

func TestImageHandler_GenerateImage(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		header       string
		images       *fakeImages
		expectedCode int
		expectedBody string
	}{
		{
			name:         "no token",
			body:         `{"prompt":"a cat"}`,
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "Unauthorized: No authentication token provided.",
		},
		{
			name:         "bad body token wins over good header",
			body:         `{"idToken":"bad","prompt":"a cat"}`,
			header:       "good",
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "Unauthorized: Invalid or expired token. Please log in.",
		},
		{
			name:         "not configured",
			body:         `{"idToken":"good","prompt":"a cat"}`,
			images:       &fakeImages{},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Server error: image provider keys not configured.",
		},
		{
			name:         "invalid json",
			body:         `{"prompt":`,
			header:       "good",
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusBadRequest,
			expectedBody: "Invalid JSON in request body.",
		},
		{
			name:         "empty prompt",
			body:         `{"idToken":"good","prompt":"   "}`,
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusBadRequest,
			expectedBody: "No prompt provided. Please provide a 'prompt' field.",
		},
		{
			name:         "prompt too long",
			body:         `{"idToken":"good","prompt":"` + strings.Repeat("a", 1001) + `"}`,
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusBadRequest,
			expectedBody: "Prompt too long. Maximum length: 1000 characters.",
		},
		{
			name:         "invalid size",
			body:         `{"idToken":"good","prompt":"a cat","size":"256x256"}`,
			images:       &fakeImages{configured: true},
			expectedCode: http.StatusBadRequest,
			expectedBody: "Invalid size. Allowed sizes: 1024x1024, 1792x1024, 1024x1792",
		},
		{
			name:         "content policy",
			body:         `{"idToken":"good","prompt":"a cat"}`,
			images:       &fakeImages{configured: true, err: models.ErrContentPolicy},
			expectedCode: http.StatusBadRequest,
			expectedBody: "Content policy violation: Your prompt was rejected by the safety system.",
		},
		{
			name:         "provider error",
			body:         `{"idToken":"good","prompt":"a cat"}`,
			images:       &fakeImages{configured: true, err: errors.New("rate limited")},
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Error during image generation: rate limited",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &ImageHandler{Images: tc.images, Verifier: verifier, Log: zap.NewNop()}
			rec := generate(h, tc.body, tc.header)
			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Equal(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestImageHandler_GenerateImage_Success(t *testing.T) {
	images := &fakeImages{configured: true, result: &models.GenerateResult{ImageURL: "https://img", RevisedPrompt: "a fluffy cat"}}
	h := &ImageHandler{Images: images, Verifier: verifier, Log: zap.NewNop()}

	rec := generate(h, `{"prompt":"  a cat ","style":"natural"}`, "good")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, GenerateResponse{
		Success:       true,
		ImageURL:      "https://img",
		Prompt:        "a cat",
		RevisedPrompt: "a fluffy cat",
		Size:          "1024x1024",
		Quality:       "standard",
		Style:         "natural",
		UserEmail:     "alice@example.com",
	}, resp)
	assert.Equal(t, "a cat", images.gotGenerate.Prompt)
}
