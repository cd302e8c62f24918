// Package analyze implements the upload and analyze flow: pick an image,
// preview it, have it captioned and tagged, and record the result.
package analyze

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/api"
	"github.com/atinyakov/PicTag/internal/client/identity"
	"github.com/atinyakov/PicTag/internal/client/session"
	"github.com/atinyakov/PicTag/internal/client/ui"
	"github.com/atinyakov/PicTag/internal/models"
)

// Status and alert texts.
const (
	MsgAnalyzing      = "Analyzing image..."
	MsgAnalyzed       = "✅ Analysis completed successfully!"
	MsgSignInRequired = "You must be signed in to analyze images!"
	MsgChooseFile     = "Please choose a file!"
	MsgWrongType      = "Please choose a JPG or PNG file!"
	MsgUnauthorized   = "Authorization error."
	MsgErrorPrefix    = "Error: "
	MsgNetworkPrefix  = "Network error: "
	DefaultCaption    = "No description"
)

// Service is the part of the API the flow needs.
type Service interface {
	AnalyzeImage(ctx context.Context, token, fileName, contentType string, data []byte) (*api.AnalyzeResult, error)
	PersistAnalysis(ctx context.Context, token string, a *models.Analysis) api.WriteResult
}

// Flow stages one file at a time and submits it for analysis. Submissions
// are not serialized; the last one to finish owns the display.
type Flow struct {
	State *session.State
	API   Service
	View  ui.View
	Log   *zap.Logger

	mu     sync.Mutex
	staged *File
}

// New returns a flow.
func New(state *session.State, svc Service, view ui.View, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{State: state, API: svc, View: view, Log: log}
}

// gate opens the sign-in dialog when nobody is signed in.
func (f *Flow) gate() bool {
	if f.State.User() == nil {
		f.View.OpenModal(ui.ModalSignIn)
		return false
	}
	return true
}

// Select stages file from the primary upload zone and previews it.
func (f *Flow) Select(file *File) bool {
	if !f.gate() {
		return false
	}
	if !file.Accepted() {
		f.View.Alert(MsgWrongType)
		return false
	}
	f.stage(file)
	f.View.ShowSelectedFile(file.Name)
	f.View.ShowPreview(file.DataURL())
	return true
}

// Hero stages file from the secondary zone and submits it right away.
func (f *Flow) Hero(ctx context.Context, file *File) bool {
	if !f.gate() {
		return false
	}
	if !file.Accepted() {
		f.View.Alert(MsgWrongType)
		return false
	}
	f.stage(file)
	f.View.ShowSelectedFile(file.Name)
	f.View.ShowPreview(file.DataURL())
	return f.Submit(ctx)
}

func (f *Flow) stage(file *File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = file
}

// Staged returns the file waiting for submission.
func (f *Flow) Staged() *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staged
}

// Reset drops the staged file.
func (f *Flow) Reset() {
	f.stage(nil)
}

// Submit analyzes the staged file.
func (f *Flow) Submit(ctx context.Context) bool {
	user := f.State.User()
	if user == nil {
		f.View.Notify(MsgSignInRequired, ui.KindError)
		return false
	}
	file := f.Staged()
	if file == nil {
		f.View.Alert(MsgChooseFile)
		return false
	}

	f.View.SetEnabled(ui.AreaAnalyze, false)
	defer f.View.SetEnabled(ui.AreaAnalyze, true)
	f.View.SetBusy(ui.AreaAnalyze, true)
	defer f.View.SetBusy(ui.AreaAnalyze, false)
	f.View.Notify(MsgAnalyzing, ui.KindInfo)
	f.View.HideResults()

	token := bearer(ctx, user, f.Log)
	res, err := f.API.AnalyzeImage(ctx, token, file.Name, file.ContentType, file.Data)
	if err != nil {
		f.View.Notify(failureMessage(err), ui.KindError)
		f.Log.Error("image analysis failed", zap.String("file", file.Name), zap.Error(err))
		return false
	}

	caption := res.Caption
	if caption == "" {
		caption = DefaultCaption
	}
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	shown := &session.Analysis{
		FileName:     file.Name,
		Caption:      caption,
		Tags:         tags,
		ImagePreview: file.DataURL(),
	}

	f.View.ShowAnalysis(caption, tags)
	f.View.Notify(MsgAnalyzed, ui.KindSuccess)
	f.View.ShowPrompt(f.State.Show(shown))

	f.API.PersistAnalysis(ctx, token, &models.Analysis{
		UserID:       user.UID,
		UserEmail:    user.Email,
		FileName:     shown.FileName,
		Caption:      shown.Caption,
		Tags:         shown.Tags,
		ImagePreview: shown.ImagePreview,
	}).Log(f.Log)
	return true
}

// bearer fetches a fresh credential. Failures and implausibly short tokens
// yield "", and the request goes out without one.
func bearer(ctx context.Context, user *identity.User, log *zap.Logger) string {
	token, err := user.IDToken(ctx, true)
	if err != nil {
		log.Error("could not get an ID token", zap.Error(err))
		return ""
	}
	if len(token) < identity.MinTokenLength {
		log.Error("ID token too short", zap.Int("length", len(token)))
		return ""
	}
	return token
}

// failureMessage renders an API failure for the status line.
func failureMessage(err error) string {
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return MsgUnauthorized
	case errors.As(err, &se):
		return MsgErrorPrefix + se.Body
	default:
		return MsgNetworkPrefix + err.Error()
	}
}
