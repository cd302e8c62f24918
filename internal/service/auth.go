// Package service provides the identity, record and image business logic,
// delegating persistence to repositories and AI work to a provider.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/PicTag/internal/auth"
	"github.com/atinyakov/PicTag/internal/models"
	"github.com/atinyakov/PicTag/internal/oauth"
)

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the shape local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// UserRepository defines the persistence operations on accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGoogleSubject(ctx context.Context, sub string) (*models.User, error)
	LinkGoogle(ctx context.Context, userID, sub string) error
}

// TokenRepository stores hashes of refresh and password reset tokens.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, hash, userID, provider string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, hash string) (userID, provider string, err error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	SavePasswordReset(ctx context.Context, hash, userID string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, resetHash string, passwordHash []byte) (userID string, err error)
}

// TokenIssuer signs ID tokens.
type TokenIssuer interface {
	Issue(user *models.User, provider string, authTime time.Time) (string, time.Time, error)
}

// OAuthProvider exchanges an authorization code for a verified identity.
type OAuthProvider interface {
	Configured() bool
	AuthURL(state string) string
	VerifyCode(ctx context.Context, code string) (*models.OAuthIdentity, error)
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// AuthConfig tunes the identity service.
type AuthConfig struct {
	RefreshTTL  time.Duration
	ResetTTL    time.Duration
	ResetURL    string
	AllowSignUp bool
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

// AuthService implements sign-up, sign-in, credential refresh and password
// reset on top of the user and token repositories.
type AuthService struct {
	users  UserRepository
	tokens TokenRepository
	issuer TokenIssuer
	google OAuthProvider
	mailer ResetMailer
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users UserRepository,
	tokens TokenRepository,
	issuer TokenIssuer,
	google OAuthProvider,
	mailer ResetMailer,
	cfg AuthConfig,
	log *zap.Logger,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		google: google,
		mailer: mailer,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// SignUp registers a password account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*models.AuthSession, error) {
	if !s.cfg.AllowSignUp {
		return nil, models.ErrOperationNotAllowed
	}
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, models.ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, models.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{ID: uuid.NewString(), Email: strings.ToLower(email), PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, models.ErrEmailInUse
		}
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID))
	return s.issueSession(ctx, user, models.ProviderPassword)
}

// SignIn verifies an email and password. Unknown emails and wrong passwords
// fail the same way.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, models.ErrInvalidEmail
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredential
		}
		return nil, err
	}
	if len(user.PasswordHash) == 0 {
		return nil, models.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, models.ErrInvalidCredential
	}
	if user.Disabled {
		return nil, models.ErrUserDisabled
	}
	return s.issueSession(ctx, user, models.ProviderPassword)
}

// GoogleAuthURL returns the consent page URL for Google sign-in.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil || !s.google.Configured() {
		return "", models.ErrOperationNotAllowed
	}
	return s.google.AuthURL(state), nil
}

// SignInWithGoogle exchanges an authorization code, then signs in the linked
// account, links an account registered without a password, or creates one.
func (s *AuthService) SignInWithGoogle(ctx context.Context, code string) (*models.AuthSession, error) {
	if s.google == nil || !s.google.Configured() {
		return nil, models.ErrOperationNotAllowed
	}
	if strings.TrimSpace(code) == "" {
		return nil, models.ErrInvalidCredential
	}

	id, err := s.google.VerifyCode(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidCode) || errors.Is(err, oauth.ErrEmailNotVerified) {
			return nil, models.ErrInvalidCredential
		}
		return nil, fmt.Errorf("verify google code: %w", err)
	}

	user, err := s.users.GetUserByGoogleSubject(ctx, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		user, err = s.linkOrCreateGoogleUser(ctx, id)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if user.Disabled {
		return nil, models.ErrUserDisabled
	}
	return s.issueSession(ctx, user, models.ProviderGoogle)
}

func (s *AuthService) linkOrCreateGoogleUser(ctx context.Context, id *models.OAuthIdentity) (*models.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, id.Email)
	switch {
	case err == nil:
		if len(existing.PasswordHash) > 0 {
			return nil, models.ErrAccountExists
		}
		if err := s.users.LinkGoogle(ctx, existing.ID, id.Subject); err != nil {
			return nil, err
		}
		existing.GoogleSubject = id.Subject
		return existing, nil
	case errors.Is(err, models.ErrNotFound):
	default:
		return nil, err
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Email:         strings.ToLower(id.Email),
		DisplayName:   id.Name,
		GoogleSubject: id.Subject,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, models.ErrAccountExists
		}
		return nil, err
	}
	s.log.Info("user signed up with google", zap.String("user_id", user.ID))
	return user, nil
}

// Refresh redeems a refresh token for a new credential bundle. The presented
// token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	if refreshToken == "" {
		return nil, models.ErrInvalidRefreshToken
	}
	userID, provider, err := s.tokens.ConsumeRefreshToken(ctx, auth.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidRefreshToken
		}
		return nil, err
	}
	if user.Disabled {
		return nil, models.ErrUserDisabled
	}
	return s.issueSession(ctx, user, provider)
}

// SignOut revokes the refresh token. It never fails from the caller's point
// of view.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.tokens.RevokeRefreshToken(ctx, auth.HashToken(refreshToken)); err != nil {
		s.log.Warn("failed to revoke refresh token", zap.Error(err))
	}
}

// SendPasswordReset creates a single-use reset token and mails its link.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return models.ErrInvalidEmail
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUserNotFound
		}
		return err
	}

	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.tokens.SavePasswordReset(ctx, hash, user.ID, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetLink(s.cfg.ResetURL, raw)); err != nil {
		return fmt.Errorf("deliver reset link: %w", err)
	}
	return nil
}

func resetLink(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

// ConfirmPasswordReset sets a new password using a reset token and signs the
// user out everywhere.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return models.ErrWeakPassword
	}
	if token == "" {
		return models.ErrInvalidActionCode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.tokens.ResetPassword(ctx, auth.HashToken(token), hash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidActionCode
		}
		return err
	}
	s.log.Info("password reset", zap.String("user_id", userID))
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, provider string) (*models.AuthSession, error) {
	now := s.now()
	idToken, exp, err := s.issuer.Issue(user, provider, now)
	if err != nil {
		return nil, fmt.Errorf("issue id token: %w", err)
	}
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokens.SaveRefreshToken(ctx, hash, user.ID, provider, now.Add(s.cfg.RefreshTTL)); err != nil {
		return nil, err
	}
	return &models.AuthSession{
		IDToken:      idToken,
		RefreshToken: raw,
		ExpiresAt:    exp,
		User:         user,
		Provider:     provider,
	}, nil
}
