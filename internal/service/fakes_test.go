package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/PicTag/internal/models"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	err   error
	links int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.byID {
		if existing.Email == strings.ToLower(u.Email) {
			return models.ErrAlreadyExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == strings.ToLower(email) })
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetUserByGoogleSubject(_ context.Context, sub string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.GoogleSubject != "" && u.GoogleSubject == sub })
}

func (m *memUsers) LinkGoogle(_ context.Context, userID, sub string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.GoogleSubject = sub
	m.links++
	return nil
}

type refreshRow struct {
	userID, provider string
	expires          time.Time
	revoked          bool
}

type resetRow struct {
	userID  string
	expires time.Time
	used    bool
}

type memTokens struct {
	mu      sync.Mutex
	refresh map[string]*refreshRow
	resets  map[string]*resetRow
	now     func() time.Time

	users    *memUsers
	resetErr error
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: map[string]*refreshRow{}, resets: map[string]*resetRow{}, now: time.Now}
}

func (m *memTokens) SaveRefreshToken(_ context.Context, hash, userID, provider string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[hash] = &refreshRow{userID: userID, provider: provider, expires: exp}
	return nil
}

func (m *memTokens) ConsumeRefreshToken(_ context.Context, hash string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refresh[hash]
	if !ok || r.revoked || !r.expires.After(m.now()) {
		return "", "", models.ErrNotFound
	}
	r.revoked = true
	return r.userID, r.provider, nil
}

func (m *memTokens) RevokeRefreshToken(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.refresh[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (m *memTokens) SavePasswordReset(_ context.Context, hash, userID string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[hash] = &resetRow{userID: userID, expires: exp}
	return nil
}

// ResetPassword applies all of its changes or none of them, like the
// transaction it stands in for.
func (m *memTokens) ResetPassword(_ context.Context, hash string, pw []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[hash]
	if !ok || r.used || !r.expires.After(m.now()) {
		return "", models.ErrNotFound
	}
	if m.resetErr != nil {
		return "", m.resetErr
	}
	m.users.mu.Lock()
	u, ok := m.users.byID[r.userID]
	if !ok {
		m.users.mu.Unlock()
		return "", models.ErrNotFound
	}
	u.PasswordHash = pw
	m.users.mu.Unlock()

	r.used = true
	for _, rt := range m.refresh {
		if rt.userID == r.userID {
			rt.revoked = true
		}
	}
	return r.userID, nil
}

func (m *memTokens) liveRefresh() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.refresh {
		if !r.revoked {
			n++
		}
	}
	return n
}

type stubIssuer struct{}

func (stubIssuer) Issue(u *models.User, provider string, _ time.Time) (string, time.Time, error) {
	return "id-token-" + u.ID + "-" + provider, time.Now().Add(time.Hour), nil
}

type stubGoogle struct {
	configured bool
	identity   *models.OAuthIdentity
	err        error
}

func (g *stubGoogle) Configured() bool { return g.configured }

func (g *stubGoogle) AuthURL(state string) string { return "https://accounts.example/auth?state=" + state }

func (g *stubGoogle) VerifyCode(context.Context, string) (*models.OAuthIdentity, error) {
	return g.identity, g.err
}

type captureMailer struct {
	to, link string
	err      error
}

func (c *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	c.to, c.link = to, link
	return c.err
}
