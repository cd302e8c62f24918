// Package models defines the core data structures for users, credentials
// and the image analysis records they own.
package models

import "time"

// User represents an account known to the identity service.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Email is the address the user signs in with.
	Email string
	// DisplayName is an optional human readable name.
	DisplayName string
	// PasswordHash is the bcrypt hash of the password, nil for OAuth-only accounts.
	PasswordHash []byte
	// GoogleSubject links the account to a Google identity when set.
	GoogleSubject string
	// Disabled accounts cannot sign in or refresh credentials.
	Disabled bool
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// Sign-in providers recorded in issued credentials.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Principal is the authenticated caller extracted from a bearer credential.
type Principal struct {
	UserID   string
	Email    string
	Name     string
	Provider string
}

// AuthSession is the credential bundle returned after a successful sign-in,
// sign-up or refresh.
type AuthSession struct {
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
	Provider     string
}

// OAuthIdentity is the identity returned by an external OAuth provider.
type OAuthIdentity struct {
	Subject string
	Email   string
	Name    string
}

// Analysis is a stored result of captioning and tagging one image.
type Analysis struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	FileName     string    `json:"fileName"`
	Caption      string    `json:"caption"`
	Tags         []string  `json:"tags"`
	ImagePreview string    `json:"imagePreview,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// GeneratedImage is a write-only log entry describing one generated image.
type GeneratedImage struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	UserEmail        string    `json:"userEmail"`
	Prompt           string    `json:"prompt"`
	RevisedPrompt    string    `json:"revisedPrompt"`
	ImageURL         string    `json:"imageUrl"`
	OriginalImageURL string    `json:"originalImageUrl"`
	Size             string    `json:"size"`
	Quality          string    `json:"quality"`
	Style            string    `json:"style"`
	BasedOnAnalysis  bool      `json:"basedOnAnalysis"`
	OriginalFileName *string   `json:"originalFileName"`
	Timestamp        time.Time `json:"timestamp"`
}

// ImageDescription is what the vision model returns for an uploaded image.
type ImageDescription struct {
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
	ImageURL string   `json:"image_url,omitempty"`
}

// GenerateRequest holds the parameters of an image generation call.
type GenerateRequest struct {
	Prompt  string
	Size    string
	Quality string
	Style   string
}

// GenerateResult is the outcome of an image generation call.
type GenerateResult struct {
	ImageURL      string
	RevisedPrompt string
}
