package models

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by repositories, services and handlers.
var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrForbidden             = errors.New("permission denied")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrProviderNotConfigured = errors.New("image provider not configured")
	ErrContentPolicy         = errors.New("content policy violation")
)

// Identity error codes shared by the server and the client.
const (
	CodeInvalidEmail           = "auth/invalid-email"
	CodeUserDisabled           = "auth/user-disabled"
	CodeUserNotFound           = "auth/user-not-found"
	CodeWrongPassword          = "auth/wrong-password"
	CodeEmailAlreadyInUse      = "auth/email-already-in-use"
	CodeWeakPassword           = "auth/weak-password"
	CodeOperationNotAllowed    = "auth/operation-not-allowed"
	CodeInvalidCredential      = "auth/invalid-credential"
	CodeAccountExistsDifferent = "auth/account-exists-with-different-credential"
	CodePopupClosedByUser      = "auth/popup-closed-by-user"
	CodeCancelledPopupRequest  = "auth/cancelled-popup-request"
	CodePopupBlocked           = "auth/popup-blocked"
	CodeNetworkRequestFailed   = "auth/network-request-failed"
	CodeTooManyRequests        = "auth/too-many-requests"
	CodeInternalError          = "auth/internal-error"
	CodeInvalidActionCode      = "auth/invalid-action-code"
	CodeInvalidRefreshToken    = "auth/invalid-refresh-token"
	CodePermissionDenied       = "permission-denied"
	CodeNotFound               = "not-found"
	CodeUnauthenticated        = "unauthenticated"
	CodeInvalidArgument        = "invalid-argument"
	CodeInternal               = "internal"
)

// AuthError is an identity failure carrying a stable provider code.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Message
}

// Identity failures returned by the auth service.
var (
	ErrInvalidEmail        = &AuthError{CodeInvalidEmail, "email address is badly formatted", http.StatusBadRequest}
	ErrWeakPassword        = &AuthError{CodeWeakPassword, "password should be at least 6 characters", http.StatusBadRequest}
	ErrEmailInUse          = &AuthError{CodeEmailAlreadyInUse, "email address is already in use", http.StatusConflict}
	ErrInvalidCredential   = &AuthError{CodeInvalidCredential, "invalid email or password", http.StatusUnauthorized}
	ErrUserDisabled        = &AuthError{CodeUserDisabled, "user account has been disabled", http.StatusForbidden}
	ErrUserNotFound        = &AuthError{CodeUserNotFound, "no user record for this email", http.StatusNotFound}
	ErrOperationNotAllowed = &AuthError{CodeOperationNotAllowed, "operation is not allowed", http.StatusForbidden}
	ErrAccountExists       = &AuthError{CodeAccountExistsDifferent, "account exists with different credential", http.StatusConflict}
	ErrInvalidActionCode   = &AuthError{CodeInvalidActionCode, "reset code is invalid or expired", http.StatusBadRequest}
	ErrInvalidRefreshToken = &AuthError{CodeInvalidRefreshToken, "refresh token is invalid or expired", http.StatusUnauthorized}
	ErrTooManyRequests     = &AuthError{CodeTooManyRequests, "too many requests", http.StatusTooManyRequests}
)

// ValidationError reports a rejected request parameter. Its message is
// returned to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
