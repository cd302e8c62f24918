package gateway

import "github.com/atinyakov/PicTag/internal/models"

// Local validation messages.
const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgBadEmailFormat   = "Invalid email address format"
	MsgResetNeedsEmail  = "Enter your email address to reset your password"
	MsgResetBadEmail    = "Enter a valid email address"
	MsgResetNeedsToken  = "Enter the reset code from the email and a new password"
)

// Outcome messages.
const (
	MsgSignedIn          = "Signed in successfully!"
	MsgSignedUp          = "Account created successfully!"
	MsgSignedInGoogle    = "Signed in with Google!"
	MsgSignedUpGoogle    = "Signed up with Google!"
	MsgSignedOut         = "Signed out successfully!"
	MsgSignOutFailed     = "Sign-out error"
	MsgResetSent         = "Password reset link sent to: %s (check your spam folder too!)"
	MsgResetFailed       = "Could not send the password reset link"
	MsgResetUserNotFound = "No user found with this email address"
	MsgPasswordChanged   = "Password changed. You can sign in now."
	MsgResetCodeInvalid  = "The reset code is invalid or has expired"
	MsgGenericError      = "An error occurred. Please try again."
)

var errorMessages = map[string]string{
	models.CodeInvalidEmail:           "Invalid email address",
	models.CodeUserDisabled:           "This account has been disabled",
	models.CodeUserNotFound:           "No account found with this email address",
	models.CodeWrongPassword:          "Wrong password",
	models.CodeEmailAlreadyInUse:      "This email address is already in use",
	models.CodeWeakPassword:           "Password is too weak (minimum 6 characters)",
	models.CodeOperationNotAllowed:    "Registration is currently unavailable",
	models.CodeInvalidCredential:      "Invalid email or password",
	models.CodeAccountExistsDifferent: "An account with this email already exists",
	models.CodePopupClosedByUser:      "Sign-in cancelled",
	models.CodeCancelledPopupRequest:  "Request cancelled",
	models.CodePopupBlocked:           "The sign-in window was blocked",
	models.CodeNetworkRequestFailed:   "Network connection error",
	models.CodeTooManyRequests:        "Too many attempts. Try again later",
	models.CodeInternalError:          "A server error occurred. Please try again",
}

// Message translates a provider code into a user-facing message.
func Message(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return MsgGenericError
}

// resetMessage translates failures of a reset request.
func resetMessage(code string) string {
	switch code {
	case models.CodeUserNotFound:
		return MsgResetUserNotFound
	case models.CodeInvalidEmail, models.CodeTooManyRequests:
		return errorMessages[code]
	default:
		return MsgResetFailed
	}
}
