// Package api calls the PicTag image and record endpoints on behalf of a
// signed-in user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/atinyakov/PicTag/internal/models"
)

// Errors returned for well-known statuses.
var (
	// ErrUnauthorized means the bearer credential was missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied means a record belongs to somebody else.
	ErrPermissionDenied = errors.New(models.CodePermissionDenied)
	// ErrNotFound means a record does not exist.
	ErrNotFound = errors.New(models.CodeNotFound)
)

// StatusError is an unexpected answer. Body is the server's text.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4 << 10

// Client talks to one PicTag server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

// AnalyzeResult is the caption and tags of one image.
type AnalyzeResult struct {
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
	ImageURL string   `json:"image_url,omitempty"`
}

// AnalyzeImage uploads data as the multipart "file" field. The bearer
// header is sent only when token is set.
func (c *Client) AnalyzeImage(ctx context.Context, token, fileName, contentType string, data []byte) (*AnalyzeResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/AnalyzeImage", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setBearer(req, token)

	var out AnalyzeResult
	if err := c.doText(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateRequest asks for one generated image. The credential travels in
// the body.
type GenerateRequest struct {
	IDToken string `json:"idToken"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

// GenerateResponse describes a generated image.
type GenerateResponse struct {
	Success       bool   `json:"success"`
	ImageURL      string `json:"image_url"`
	Prompt        string `json:"prompt"`
	RevisedPrompt string `json:"revised_prompt"`
	Size          string `json:"size"`
	Quality       string `json:"quality"`
	Style         string `json:"style"`
	UserEmail     string `json:"user_email"`
}

// GenerateImage creates an image from req.Prompt. The credential is also
// sent as a bearer header.
func (c *Client) GenerateImage(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/GenerateImage", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setBearer(httpReq, req.IDToken)

	var out GenerateResponse
	if err := c.doText(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches the bytes behind rawURL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return data, nil
}

// ListAnalyses returns the caller's newest records. limit <= 0 returns all
// of them.
func (c *Client) ListAnalyses(ctx context.Context, token string, limit int) ([]models.Analysis, error) {
	path := "/api/analyses"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.Analysis
	if err := c.record(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnalysis returns one record.
func (c *Client) GetAnalysis(ctx context.Context, token, id string) (*models.Analysis, error) {
	var out models.Analysis
	if err := c.record(ctx, http.MethodGet, "/api/analyses/"+url.PathEscape(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAnalysis removes one record.
func (c *Client) DeleteAnalysis(ctx context.Context, token, id string) error {
	return c.record(ctx, http.MethodDelete, "/api/analyses/"+url.PathEscape(id), token, nil, nil)
}

type idResponse struct {
	ID string `json:"id"`
}

// SaveAnalysis stores a record and returns its identifier.
func (c *Client) SaveAnalysis(ctx context.Context, token string, a *models.Analysis) (string, error) {
	var out idResponse
	if err := c.record(ctx, http.MethodPost, "/api/analyses", token, a, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SaveGeneratedImage appends to the generation log and returns the entry's
// identifier.
func (c *Client) SaveGeneratedImage(ctx context.Context, token string, g *models.GeneratedImage) (string, error) {
	var out idResponse
	if err := c.record(ctx, http.MethodPost, "/api/generated-images", token, g, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// doText runs a request against an image route. Those answer failures in
// plain text.
func (c *Client) doText(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorBody is the JSON envelope of record failures.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) record(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setBearer(req, token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return ErrUnauthorized
		case resp.StatusCode == http.StatusForbidden || eb.Code == models.CodePermissionDenied:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, eb.Message)
		case resp.StatusCode == http.StatusNotFound || eb.Code == models.CodeNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, eb.Message)
		}
		msg := eb.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &StatusError{Status: resp.StatusCode, Body: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: string(raw)}
}
