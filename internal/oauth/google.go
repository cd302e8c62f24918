// Package oauth exchanges Google authorization codes for a verified identity.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/models"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var (
	ErrInvalidCode      = errors.New("oauth: invalid or expired code")
	ErrUnavailable      = errors.New("oauth: google unavailable")
	ErrEmailNotVerified = errors.New("oauth: email not verified")
	ErrBadResponse      = errors.New("oauth: invalid provider response")
)

// GoogleVerifier talks to Google's OAuth endpoints.
type GoogleVerifier struct {
	clientID     string
	clientSecret string
	redirectURI  string

	authURL     string
	tokenURL    string
	userinfoURL string

	httpClient *http.Client
	retryDelay time.Duration
	log        *zap.Logger
}

// NewGoogleVerifier creates a verifier for the given OAuth client.
func NewGoogleVerifier(clientID, clientSecret, redirectURI string, log *zap.Logger) *GoogleVerifier {
	return &GoogleVerifier{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		authURL:      defaultAuthURL,
		tokenURL:     defaultTokenURL,
		userinfoURL:  defaultUserinfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		retryDelay:   500 * time.Millisecond,
		log:          log.With(zap.String("adapter", "google_oauth")),
	}
}

// Configured reports whether a client ID and secret were supplied.
func (v *GoogleVerifier) Configured() bool {
	return v.clientID != "" && v.clientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type userinfoResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// AuthURL returns the consent page the user must visit to obtain a code.
func (v *GoogleVerifier) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", v.clientID)
	q.Set("redirect_uri", v.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("prompt", "select_account")
	if state != "" {
		q.Set("state", state)
	}
	return v.authURL + "?" + q.Encode()
}

// VerifyCode exchanges an authorization code for the user's identity.
func (v *GoogleVerifier) VerifyCode(ctx context.Context, code string) (*models.OAuthIdentity, error) {
	accessToken, err := v.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := v.fetchUserinfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !info.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	v.log.Debug("google oauth success", zap.String("email", info.Email))
	return &models.OAuthIdentity{
		Subject: info.ID,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}

func (v *GoogleVerifier) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", v.clientID)
	form.Set("client_secret", v.clientSecret)
	form.Set("redirect_uri", v.redirectURI)
	encoded := form.Encode()

	resp, err := v.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.tokenURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		v.log.Error("google oauth token exchange failed", zap.Error(err))
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ErrBadResponse
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			v.log.Error("google oauth token exchange failed",
				zap.Int("status", resp.StatusCode),
				zap.String("error", errResp.Error))
			if resp.StatusCode == http.StatusBadRequest {
				return "", ErrInvalidCode
			}
		}
		v.log.Error("google oauth token exchange failed", zap.Int("status", resp.StatusCode))
		return "", ErrUnavailable
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		v.log.Error("google oauth token exchange failed", zap.String("error", "missing access_token"))
		return "", ErrBadResponse
	}
	return tok.AccessToken, nil
}

func (v *GoogleVerifier) fetchUserinfo(ctx context.Context, accessToken string) (*userinfoResponse, error) {
	resp, err := v.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
	if err != nil {
		v.log.Error("google oauth userinfo failed", zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.log.Error("google oauth userinfo failed", zap.Int("status", resp.StatusCode))
		return nil, ErrUnavailable
	}

	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, ErrBadResponse
	}
	if info.ID == "" || info.Email == "" {
		v.log.Error("google oauth userinfo failed", zap.String("error", "missing required fields"))
		return nil, ErrBadResponse
	}
	return &info, nil
}

// doWithRetry retries once on a network error or a 5xx answer.
func (v *GoogleVerifier) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		return v.httpClient.Do(req)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := attempt()
	if err == nil && resp.StatusCode < 500 {
		return resp, nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	select {
	case <-time.After(v.retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return attempt()
}
