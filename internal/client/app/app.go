// Package app wires the client flows together: it reacts to identity
// changes and dispatches shell commands to the flows.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/analyze"
	"github.com/atinyakov/PicTag/internal/client/gateway"
	"github.com/atinyakov/PicTag/internal/client/generate"
	"github.com/atinyakov/PicTag/internal/client/history"
	"github.com/atinyakov/PicTag/internal/client/identity"
	"github.com/atinyakov/PicTag/internal/client/session"
	"github.com/atinyakov/PicTag/internal/client/ui"
)

// LatestDelay is how long after sign-in the newest analysis is loaded.
const LatestDelay = 500 * time.Millisecond

// Input answers the questions commands ask.
type Input interface {
	Line(label string) (string, error)
	Password(label string) (string, error)
}

// App holds the client components.
type App struct {
	State    *session.State
	Gateway  *gateway.Gateway
	Analyze  *analyze.Flow
	History  *history.Browser
	Generate *generate.Flow
	View     ui.View
	Input    Input
	Out      io.Writer
	Log      *zap.Logger

	LatestDelay time.Duration

	mu      sync.Mutex
	seen    bool
	current *identity.User
	options generate.Options
	timers  sync.WaitGroup
}

// New returns an app that loads the newest analysis LatestDelay after
// sign-in.
func New(state *session.State, gw *gateway.Gateway, an *analyze.Flow, hist *history.Browser,
	gen *generate.Flow, view ui.View, in Input, out io.Writer, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		State:       state,
		Gateway:     gw,
		Analyze:     an,
		History:     hist,
		Generate:    gen,
		View:        view,
		Input:       in,
		Out:         out,
		Log:         log,
		LatestDelay: LatestDelay,
	}
}

// Watch applies identity changes to the layout until ctx is done or the
// state stops publishing. It returns once the subscription is closed.
func (a *App) Watch(ctx context.Context) {
	changes, cancel := a.State.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-changes:
			if !ok {
				return
			}
			a.onIdentity(ctx, u)
		}
	}
}

func (a *App) onIdentity(ctx context.Context, u *identity.User) {
	a.mu.Lock()
	if a.seen && a.current == u {
		a.mu.Unlock()
		return
	}
	a.seen, a.current = true, u
	a.mu.Unlock()

	a.clear()
	if u == nil {
		a.View.SetMode(ui.ModeAnonymous, "")
		return
	}
	a.View.SetMode(ui.ModeAuthenticated, "Hi, "+u.Name()+"!")

	a.timers.Add(1)
	time.AfterFunc(a.LatestDelay, func() {
		defer a.timers.Done()
		if ctx.Err() != nil || a.State.User() != u {
			return
		}
		a.History.LoadLatest(ctx)
	})
}

// clear drops everything on screen and the row numbers of the last
// history listing.
func (a *App) clear() {
	a.View.ClearResults()
	a.State.Clear()
	a.Analyze.Reset()
	a.Generate.Reset()
	a.History.Reset()
}

// Wait blocks until pending delayed loads have finished.
func (a *App) Wait() {
	a.timers.Wait()
}
