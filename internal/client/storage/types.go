package storage

import "time"

// Session is the credential bundle kept on disk between client runs.
type Session struct {
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Provider     string    `json:"providerId"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
}

// Expired reports whether the ID token is expired or expires within skew.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(s.ExpiresAt)
}
