// Package generate turns the tags of the displayed analysis into a prompt
// and has a new image generated from it.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/api"
	"github.com/atinyakov/PicTag/internal/client/identity"
	"github.com/atinyakov/PicTag/internal/client/session"
	"github.com/atinyakov/PicTag/internal/client/ui"
	"github.com/atinyakov/PicTag/internal/models"
)

// MinPromptLength is the shortest prompt sent for generation.
const MinPromptLength = 10

// Status texts.
const (
	MsgSignInRequired = "You must be signed in to generate images!"
	MsgPromptEmpty    = "Prompt is empty!"
	MsgPromptShort    = "Prompt is too short. Minimum 10 characters."
	MsgGenerating     = "Generating image with DALL-E 3. This may take a moment."
	MsgNoToken        = "Could not get an authorization token!"
	MsgSignInAgain    = "Please sign in again."
	MsgGenerated      = "Image generated successfully!"
	MsgUnauthorized   = "Authorization error"
	MsgErrorPrefix    = "Error: "
	MsgNetworkPrefix  = "Network error: "
	MsgNothingToSave  = "Generate an image first"
	MsgDownloading    = "⬇️ Downloading image..."
	MsgDownloaded     = "Image downloaded!"
	MsgDownloadFailed = "Error downloading image"
)

// Options are passed to the endpoint as they are.
type Options struct {
	Size    string
	Quality string
	Style   string
}

// Service is the part of the API the flow needs.
type Service interface {
	GenerateImage(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error)
	Download(ctx context.Context, url string) ([]byte, error)
	PersistGeneratedImage(ctx context.Context, token string, g *models.GeneratedImage) api.WriteResult
}

// Flow generates images and saves them into Dir on request.
type Flow struct {
	State *session.State
	API   Service
	View  ui.View
	Log   *zap.Logger
	Dir   string
	Now   func() time.Time

	mu   sync.Mutex
	last *api.GenerateResponse
}

// New returns a flow that saves downloads into dir.
func New(state *session.State, svc Service, view ui.View, log *zap.Logger, dir string) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{State: state, API: svc, View: view, Log: log, Dir: dir, Now: time.Now}
}

// Submit generates an image from prompt.
func (f *Flow) Submit(ctx context.Context, prompt string, opts Options) bool {
	user := f.State.User()
	if user == nil {
		f.View.OpenModal(ui.ModalSignIn)
		f.View.GenerateNotify(MsgSignInRequired, ui.KindError)
		return false
	}
	prompt = strings.TrimSpace(prompt)
	switch {
	case prompt == "":
		f.View.GenerateNotify(MsgPromptEmpty, ui.KindError)
		return false
	case utf8.RuneCountInString(prompt) < MinPromptLength:
		f.View.GenerateNotify(MsgPromptShort, ui.KindError)
		return false
	}

	f.View.SetEnabled(ui.AreaGenerate, false)
	defer f.View.SetEnabled(ui.AreaGenerate, true)
	f.View.SetBusy(ui.AreaGenerate, true)
	defer f.View.SetBusy(ui.AreaGenerate, false)
	f.View.GenerateNotify(MsgGenerating, ui.KindInfo)
	f.View.HideGenerated()

	token, err := user.IDToken(ctx, true)
	if err != nil || token == "" {
		f.Log.Error("could not get an ID token", zap.Error(err))
		f.View.GenerateNotify(MsgNoToken, ui.KindError)
		return false
	}
	if len(token) < identity.MinTokenLength {
		f.Log.Error("ID token too short", zap.Int("length", len(token)))
		f.View.GenerateNotify(MsgSignInAgain, ui.KindError)
		return false
	}

	res, err := f.API.GenerateImage(ctx, api.GenerateRequest{
		IDToken: token,
		Prompt:  prompt,
		Size:    opts.Size,
		Quality: opts.Quality,
		Style:   opts.Style,
	})
	if err != nil {
		f.Log.Error("image generation failed", zap.Error(err))
		f.View.GenerateNotify(failureMessage(err), ui.KindError)
		return false
	}

	f.mu.Lock()
	f.last = res
	f.mu.Unlock()

	shown := f.State.Displayed()
	original := ""
	if shown != nil {
		original = shown.ImagePreview
	}
	f.View.ShowGenerated(ui.Generated{
		ImageURL:      res.ImageURL,
		OriginalImage: original,
		RevisedPrompt: res.RevisedPrompt,
	})
	f.View.GenerateNotify(MsgGenerated, ui.KindSuccess)

	record := &models.GeneratedImage{
		UserID:           user.UID,
		UserEmail:        user.Email,
		Prompt:           prompt,
		RevisedPrompt:    res.RevisedPrompt,
		ImageURL:         res.ImageURL,
		OriginalImageURL: original,
		Size:             res.Size,
		Quality:          res.Quality,
		Style:            res.Style,
		BasedOnAnalysis:  shown != nil,
	}
	if shown != nil {
		name := shown.FileName
		record.OriginalFileName = &name
	}
	f.API.PersistGeneratedImage(ctx, token, record).Log(f.Log)
	return true
}

// Last returns the most recent generated image, or nil.
func (f *Flow) Last() *api.GenerateResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Download saves the generated image as dall-e-generated-<unix ms>.png and
// returns its path.
func (f *Flow) Download(ctx context.Context) (string, bool) {
	last := f.Last()
	if last == nil {
		f.View.GenerateNotify(MsgNothingToSave, ui.KindError)
		return "", false
	}

	f.View.GenerateNotify(MsgDownloading, ui.KindInfo)
	path, err := f.save(ctx, last.ImageURL)
	if err != nil {
		f.Log.Error("downloading image failed", zap.String("url", last.ImageURL), zap.Error(err))
		f.View.GenerateNotify(MsgDownloadFailed, ui.KindError)
		return "", false
	}
	f.View.GenerateNotify(MsgDownloaded, ui.KindSuccess)
	return path, true
}

func (f *Flow) save(ctx context.Context, url string) (string, error) {
	data, err := f.API.Download(ctx, url)
	if err != nil {
		return "", err
	}
	if f.Dir != "" {
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return "", err
		}
	}
	path := filepath.Join(f.Dir, fmt.Sprintf("dall-e-generated-%d.png", f.Now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Again hides the result so a new prompt can be tried.
func (f *Flow) Again() {
	f.mu.Lock()
	f.last = nil
	f.mu.Unlock()
	f.View.HideGenerated()
	f.View.GenerateNotify("", ui.KindInfo)
}

// Reset forgets the last result.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
}

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
