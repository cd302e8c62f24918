// Package gateway implements the sign-in, sign-up, password reset and
// sign-out interactions on top of the identity client.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/identity"
	"github.com/atinyakov/PicTag/internal/client/ui"
	"github.com/atinyakov/PicTag/internal/models"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Authenticator is the identity provider the gateway drives.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*identity.User, error)
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
	GoogleAuthURL(ctx context.Context, state string) (string, error)
	SignInWithGoogle(ctx context.Context, code string) (*identity.User, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

// AskCode shows the consent page URL and returns the pasted authorization
// code. An empty code means the user gave up.
type AskCode func(authURL string) (string, error)

// Gateway validates input locally, calls the identity provider and reports
// the outcome on the view.
type Gateway struct {
	Auth Authenticator
	View ui.View
	Log  *zap.Logger
}

// New returns a gateway.
func New(auth Authenticator, view ui.View, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{Auth: auth, View: view, Log: log}
}

func (g *Gateway) fail(msg string) {
	g.View.ModalMessage(msg, ui.KindError, ui.ErrorTTL)
}

func (g *Gateway) succeed(msg string) {
	g.View.CloseModal()
	g.View.ClearModalMessages()
	g.View.ClearForm()
	g.View.Notify(msg, ui.KindSuccess)
}

// SignIn signs in with an email and password.
func (g *Gateway) SignIn(ctx context.Context, email, password string) bool {
	g.View.ClearModalMessages()
	if email == "" || password == "" {
		g.fail(MsgFillAllFields)
		return false
	}
	if !ValidEmail(email) {
		g.fail(MsgBadEmailFormat)
		return false
	}

	if _, err := g.Auth.SignIn(ctx, email, password); err != nil {
		g.Log.Error("sign-in failed", zap.Error(err))
		g.fail(Message(identity.Code(err)))
		return false
	}
	g.succeed(MsgSignedIn)
	return true
}

// SignUp creates a password account.
func (g *Gateway) SignUp(ctx context.Context, email, password, confirm string) bool {
	g.View.ClearModalMessages()
	switch {
	case email == "" || password == "" || confirm == "":
		g.fail(MsgFillAllFields)
		return false
	case password != confirm:
		g.fail(MsgPasswordMismatch)
		return false
	case utf8.RuneCountInString(password) < MinPasswordLength:
		g.fail(MsgPasswordTooShort)
		return false
	case !ValidEmail(email):
		g.fail(MsgBadEmailFormat)
		return false
	}

	if _, err := g.Auth.SignUp(ctx, email, password); err != nil {
		g.Log.Error("sign-up failed", zap.Error(err))
		g.fail(Message(identity.Code(err)))
		return false
	}
	g.succeed(MsgSignedUp)
	return true
}

// SignInWithProvider runs the Google consent round trip. from is the modal
// the user started in and selects the success message. Dismissing the
// consent page is silent.
func (g *Gateway) SignInWithProvider(ctx context.Context, from ui.Modal, ask AskCode) bool {
	g.View.ClearModalMessages()

	err := g.providerSignIn(ctx, ask)
	if err != nil {
		code := identity.Code(err)
		if code == models.CodePopupClosedByUser {
			return false
		}
		g.Log.Error("google sign-in failed", zap.Error(err))
		g.fail(Message(code))
		return false
	}

	if from == ui.ModalSignUp {
		g.succeed(MsgSignedUpGoogle)
	} else {
		g.succeed(MsgSignedInGoogle)
	}
	return true
}

func (g *Gateway) providerSignIn(ctx context.Context, ask AskCode) error {
	state, err := newState()
	if err != nil {
		return &identity.Error{Code: models.CodeInternalError, Message: err.Error()}
	}
	authURL, err := g.Auth.GoogleAuthURL(ctx, state)
	if err != nil {
		return err
	}
	code, err := ask(authURL)
	if err != nil {
		return &identity.Error{Code: models.CodeCancelledPopupRequest, Message: err.Error()}
	}
	_, err = g.Auth.SignInWithGoogle(ctx, code)
	return err
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SignOut ends the session.
func (g *Gateway) SignOut(ctx context.Context) {
	if err := g.Auth.SignOut(ctx); err != nil {
		g.Log.Error("sign-out failed", zap.Error(err))
		g.View.Notify(MsgSignOutFailed, ui.KindError)
		return
	}
	g.View.Notify(MsgSignedOut, ui.KindSuccess)
}

// ResetPassword mails a reset link to email.
func (g *Gateway) ResetPassword(ctx context.Context, email string) bool {
	g.View.ClearModalMessages()
	if email == "" {
		g.fail(MsgResetNeedsEmail)
		return false
	}
	if !ValidEmail(email) {
		g.fail(MsgResetBadEmail)
		return false
	}

	if err := g.Auth.SendPasswordReset(ctx, email); err != nil {
		g.Log.Error("password reset failed", zap.Error(err))
		g.fail(resetMessage(identity.Code(err)))
		return false
	}
	g.View.ModalMessage(fmt.Sprintf(MsgResetSent, email), ui.KindSuccess, ui.ResetSuccessTTL)
	return true
}

// ConfirmReset sets a new password with the token from the reset link.
func (g *Gateway) ConfirmReset(ctx context.Context, token, password string) bool {
	g.View.ClearModalMessages()
	if token == "" || password == "" {
		g.fail(MsgResetNeedsToken)
		return false
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		g.fail(MsgPasswordTooShort)
		return false
	}

	if err := g.Auth.ConfirmPasswordReset(ctx, token, password); err != nil {
		g.Log.Error("password reset confirmation failed", zap.Error(err))
		if code := identity.Code(err); code == models.CodeInvalidActionCode {
			g.fail(MsgResetCodeInvalid)
		} else {
			g.fail(Message(code))
		}
		return false
	}
	g.View.ModalMessage(MsgPasswordChanged, ui.KindSuccess, ui.ResetSuccessTTL)
	return true
}
