// Package identity is the client side of the PicTag identity service. It
// signs users in, keeps their credentials fresh and publishes every
// identity change on a channel.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/storage"
	"github.com/atinyakov/PicTag/internal/models"
)

// CodeNoCurrentUser is returned when a credential is requested while
// nobody is signed in.
const CodeNoCurrentUser = "auth/no-current-user"

// refreshSkew is how long before expiry an ID token is considered stale.
const refreshSkew = time.Minute

// MinTokenLength is the shortest string accepted as a bearer credential.
// Anything shorter is not a signed ID token.
const MinTokenLength = 500

// Error is an identity failure identified by its provider code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Code returns the provider code carried by err, or "" when err is not an
// identity error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// TokenSource issues bearer credentials for a signed-in user.
type TokenSource interface {
	IDToken(ctx context.Context, force bool) (string, error)
}

// User is a signed-in identity.
type User struct {
	UID         string
	Email       string
	DisplayName string
	tokens      TokenSource
}

// NewUser returns a user whose credentials come from tokens.
func NewUser(uid, email, displayName string, tokens TokenSource) *User {
	return &User{UID: uid, Email: email, DisplayName: displayName, tokens: tokens}
}

// IDToken returns a bearer credential. With force set the credential is
// refreshed even when the cached one is still valid.
func (u *User) IDToken(ctx context.Context, force bool) (string, error) {
	if u == nil || u.tokens == nil {
		return "", &Error{Code: CodeNoCurrentUser}
	}
	return u.tokens.IDToken(ctx, force)
}

// Name is the display name, or the local part of the email when unset.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

type sessionResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	Provider     string `json:"providerId"`
	User         struct {
		UID         string `json:"uid"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to the identity routes of the PicTag server.
type Client struct {
	baseURL string
	http    *http.Client
	store   *storage.LocalStorage
	log     *zap.Logger
	now     func() time.Time

	// refreshMu serializes refresh round trips so a rotated refresh token
	// is never presented twice.
	refreshMu sync.Mutex

	mu      sync.Mutex
	session *storage.Session
	user    *User
	changes chan *User
}

// NewClient returns a client for the server at baseURL. A nil store keeps
// the session in memory only.
func NewClient(baseURL string, httpClient *http.Client, store *storage.LocalStorage, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		store:   store,
		log:     log,
		now:     time.Now,
		changes: make(chan *User, 1),
	}
}

// Changes delivers the identity after every sign-in and sign-out, nil
// meaning signed out. Only the latest pending change is kept.
func (c *Client) Changes() <-chan *User {
	return c.changes
}

// Current returns the signed-in user or nil.
func (c *Client) Current() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// publish must be called with c.mu held.
func (c *Client) publish(u *User) {
	for {
		select {
		case c.changes <- u:
			return
		default:
		}
		select {
		case <-c.changes:
		default:
		}
	}
}

// Restore loads the persisted session and publishes the initial identity.
// An expired credential is refreshed; a refresh token the server no longer
// accepts signs the user out.
func (c *Client) Restore(ctx context.Context) error {
	var s *storage.Session
	var loadErr error
	if c.store != nil {
		s, loadErr = c.store.Load()
	}

	c.mu.Lock()
	if s == nil {
		c.session, c.user = nil, nil
		c.publish(nil)
		c.mu.Unlock()
		return loadErr
	}
	c.session = s
	c.user = NewUser(s.UID, s.Email, s.DisplayName, c)
	c.publish(c.user)
	c.mu.Unlock()

	if s.Expired(c.now(), refreshSkew) {
		if _, err := c.refresh(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// SignIn authenticates with an email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/signin", map[string]string{"email": email, "password": password})
}

// SignUp registers a password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/signup", map[string]string{"email": email, "password": password})
}

// GoogleAuthURL returns the Google consent page the user should open.
func (c *Client) GoogleAuthURL(ctx context.Context, state string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/auth/oauth/google/url?state="+url.QueryEscape(state), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// SignInWithGoogle exchanges the authorization code pasted by the user. An
// empty code means the user dismissed the consent page.
func (c *Client) SignInWithGoogle(ctx context.Context, code string) (*User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &Error{Code: models.CodePopupClosedByUser}
	}
	return c.authenticate(ctx, "/api/auth/oauth/google", map[string]string{"code": code})
}

// SignOut forgets the local session and revokes its refresh token. Failing
// to reach the server does not keep the user signed in.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session, c.user = nil, nil
	c.publish(nil)
	c.mu.Unlock()

	var clearErr error
	if c.store != nil {
		clearErr = c.store.Clear()
	}
	if s != nil {
		if err := c.post(ctx, "/api/auth/signout", map[string]string{"refreshToken": s.RefreshToken}, nil); err != nil {
			c.log.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	return clearErr
}

// SendPasswordReset asks the server to mail a reset link to email.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "/api/auth/reset", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password using the token from the link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return c.post(ctx, "/api/auth/reset/confirm", map[string]string{"token": token, "password": password}, nil)
}

// IDToken returns the current bearer credential, refreshing it when it is
// about to expire or when force is set.
func (c *Client) IDToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return "", &Error{Code: CodeNoCurrentUser}
	}
	if !force && !s.Expired(c.now(), refreshSkew) {
		return s.IDToken, nil
	}
	return c.refresh(ctx, force)
}

func (c *Client) refresh(ctx context.Context, force bool) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return "", &Error{Code: CodeNoCurrentUser}
	}
	if !force && !s.Expired(c.now(), refreshSkew) {
		return s.IDToken, nil
	}

	var resp sessionResponse
	err := c.post(ctx, "/api/auth/refresh", map[string]string{"refreshToken": s.RefreshToken}, &resp)
	if err != nil {
		switch Code(err) {
		case models.CodeInvalidRefreshToken, models.CodeUserDisabled:
			c.log.Info("session no longer valid, signing out", zap.String("code", Code(err)))
			c.mu.Lock()
			if c.session == s {
				c.session, c.user = nil, nil
				c.publish(nil)
			}
			c.mu.Unlock()
			if c.store != nil {
				if clearErr := c.store.Clear(); clearErr != nil {
					c.log.Warn("failed to clear session", zap.Error(clearErr))
				}
			}
		}
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		// Signed out or replaced while the request was in flight.
		return resp.IDToken, nil
	}
	c.applyLocked(&resp, false)
	return resp.IDToken, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	var resp sessionResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(&resp, true), nil
}

// applyLocked stores a credential bundle. It must be called with c.mu held.
func (c *Client) applyLocked(resp *sessionResponse, signIn bool) *User {
	s := &storage.Session{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Provider:     resp.Provider,
		UID:          resp.User.UID,
		Email:        resp.User.Email,
		DisplayName:  resp.User.DisplayName,
	}
	c.session = s
	if c.store != nil {
		if err := c.store.Save(s); err != nil {
			c.log.Warn("failed to persist session", zap.Error(err))
		}
	}
	if signIn || c.user == nil || c.user.UID != s.UID {
		c.user = NewUser(s.UID, s.Email, s.DisplayName, c)
		c.publish(c.user)
	}
	return c.user
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: models.CodeNetworkRequestFailed, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var body errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
			return &Error{Code: models.CodeInternalError, Message: resp.Status}
		}
		return &Error{Code: body.Code, Message: body.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Code: models.CodeInternalError, Message: "decode response: " + err.Error()}
	}
	return nil
}
