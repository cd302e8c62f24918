// Package auth issues and verifies the RS256 bearer credentials handed to
// clients, and generates the opaque refresh and password reset tokens.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// JWTManager handles ID token generation and validation, plus opaque token
// generation and hashing.
type JWTManager struct {
	key      *rsa.PrivateKey
	keyID    string
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTManager creates a manager signing with key.
func NewJWTManager(key *rsa.PrivateKey, issuer, audience string, ttl time.Duration) *JWTManager {
	sum := sha256.Sum256(key.PublicKey.N.Bytes())
	return &JWTManager{
		key:      key,
		keyID:    hex.EncodeToString(sum[:8]),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// idClaims mirrors the claim set of a typical identity provider ID token.
type idClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	AuthTime      int64  `json:"auth_time"`
	UserID        string `json:"user_id"`
	Provider      string `json:"sign_in_provider"`
}

// Issue creates a signed ID token for user. authTime is when the user last
// proved their identity.
func (m *JWTManager) Issue(user *models.User, provider string, authTime time.Time) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := idClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Email:         user.Email,
		EmailVerified: provider == models.ProviderGoogle,
		Name:          user.DisplayName,
		AuthTime:      authTime.Unix(),
		UserID:        user.ID,
		Provider:      provider,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.keyID
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates an ID token and returns its principal.
func (m *JWTManager) Verify(tokenString string) (*models.Principal, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &idClaims{}, func(token *jwt.Token) (any, error) {
		return &m.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*idClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &models.Principal{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: claims.Provider,
	}, nil
}

// GenerateOpaqueToken creates a cryptographically random token.
// Returns both the raw token (to send to client) and its SHA-256 hash (to store in DB).
func GenerateOpaqueToken() (raw string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate random bytes: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken computes the SHA-256 hash of a token and returns it as a hex string.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
