// Package history lists, shows and deletes the signed-in user's past
// analyses.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/PicTag/internal/client/api"
	"github.com/atinyakov/PicTag/internal/client/session"
	"github.com/atinyakov/PicTag/internal/client/ui"
	"github.com/atinyakov/PicTag/internal/models"
)

const (
	// PageSize is how many records the list shows.
	PageSize = 50
	// MaxRowTags is how many tags a row lists before "+N".
	MaxRowTags = 5
)

// User-facing texts.
const (
	MsgLoadFailed       = "❌ Error loading history"
	MsgNotFound         = "Analysis not found"
	MsgViewFailed       = "Error loading analysis"
	MsgConfirmDelete    = "Are you sure you want to delete this analysis?"
	MsgDeleteFailed     = "Error deleting analysis"
	MsgConfirmDeleteAll = "Are you sure you want to delete your ENTIRE history?"
	MsgNothingToDelete  = "No history to delete"
	MsgDeletedAll       = "Deleted %d analyses from history"
	MsgPermission       = "Permission error"
	MsgDeleteAllPrefix  = "Error deleting history: "
	UnknownFile         = "Unknown file"
	DefaultCaption      = "No description"
)

// Store is the record API the browser needs.
type Store interface {
	ListAnalyses(ctx context.Context, token string, limit int) ([]models.Analysis, error)
	GetAnalysis(ctx context.Context, token, id string) (*models.Analysis, error)
	DeleteAnalysis(ctx context.Context, token, id string) error
}

// Browser drives the history dialog.
type Browser struct {
	State *session.State
	Store Store
	View  ui.View
	Log   *zap.Logger
	Now   func() time.Time
	Loc   *time.Location

	mu  sync.Mutex
	ids []string
}

// New returns a browser that formats times in the local zone.
func New(state *session.State, store Store, view ui.View, log *zap.Logger) *Browser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Browser{State: state, Store: store, View: view, Log: log, Now: time.Now, Loc: time.Local}
}

func (b *Browser) token(ctx context.Context) (string, bool) {
	user := b.State.User()
	if user == nil {
		return "", false
	}
	token, err := user.IDToken(ctx, false)
	if err != nil {
		b.Log.Error("could not get an ID token", zap.Error(err))
	}
	return token, true
}

// gate opens the sign-in dialog when nobody is signed in.
func (b *Browser) gate() bool {
	if b.State.User() == nil {
		b.View.OpenModal(ui.ModalSignIn)
		return false
	}
	return true
}

// Open shows the dialog and loads the newest records.
func (b *Browser) Open(ctx context.Context) bool {
	if !b.gate() {
		return false
	}
	b.View.OpenModal(ui.ModalHistory)
	b.Reload(ctx)
	return true
}

// Reload refreshes the list.
func (b *Browser) Reload(ctx context.Context) {
	token, ok := b.token(ctx)
	if !ok {
		return
	}

	b.View.SetBusy(ui.AreaHistory, true)
	list, err := b.Store.ListAnalyses(ctx, token, PageSize)
	b.View.SetBusy(ui.AreaHistory, false)
	if err != nil {
		b.Log.Error("loading history failed", zap.Error(err))
		b.setIDs(nil)
		b.View.HistoryError(MsgLoadFailed)
		return
	}
	if len(list) == 0 {
		b.setIDs(nil)
		b.View.HistoryEmpty()
		return
	}

	now := b.Now()
	rows := make([]ui.HistoryRow, 0, len(list))
	ids := make([]string, 0, len(list))
	for i := range list {
		rows = append(rows, b.row(now, &list[i]))
		ids = append(ids, list[i].ID)
	}
	b.setIDs(ids)
	b.View.ShowHistory(rows)
}

func (b *Browser) row(now time.Time, a *models.Analysis) ui.HistoryRow {
	r := ui.HistoryRow{
		ID:        a.ID,
		Thumbnail: a.ImagePreview != "",
		FileName:  a.FileName,
		When:      RelativeTime(now, a.Timestamp, b.Loc),
		Caption:   a.Caption,
		Tags:      a.Tags,
	}
	if r.FileName == "" {
		r.FileName = UnknownFile
	}
	if r.Caption == "" {
		r.Caption = DefaultCaption
	}
	if len(r.Tags) > MaxRowTags {
		r.More = len(r.Tags) - MaxRowTags
		r.Tags = r.Tags[:MaxRowTags]
	}
	return r
}

func (b *Browser) setIDs(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = ids
}

// RowID maps a 1-based row number of the last listing to a record ID.
func (b *Browser) RowID(n int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 1 || n > len(b.ids) {
		return "", false
	}
	return b.ids[n-1], true
}

// Reset forgets the last listing.
func (b *Browser) Reset() {
	b.setIDs(nil)
}

// Rows returns how many rows are listed.
func (b *Browser) Rows() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ids)
}

// Show loads a record into the main display and closes the dialog.
func (b *Browser) Show(ctx context.Context, id string) bool {
	if !b.gate() {
		return false
	}
	token, ok := b.token(ctx)
	if !ok {
		return false
	}
	a, err := b.Store.GetAnalysis(ctx, token, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			b.View.Alert(MsgNotFound)
			return false
		}
		b.Log.Error("loading analysis failed", zap.String("id", id), zap.Error(err))
		b.View.Alert(MsgViewFailed)
		return false
	}

	b.View.CloseModal()
	b.display(a)
	return true
}

func (b *Browser) display(a *models.Analysis) {
	caption := a.Caption
	if caption == "" {
		caption = DefaultCaption
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	if a.ImagePreview != "" {
		b.View.ShowPreview(a.ImagePreview)
	}
	b.View.ShowAnalysis(caption, tags)
	b.View.ShowPrompt(b.State.Show(&session.Analysis{
		ID:           a.ID,
		FileName:     a.FileName,
		Caption:      caption,
		Tags:         tags,
		ImagePreview: a.ImagePreview,
	}))
}

// Delete removes one record after confirmation.
func (b *Browser) Delete(ctx context.Context, id string) bool {
	if !b.gate() || !b.View.Confirm(MsgConfirmDelete) {
		return false
	}
	token, ok := b.token(ctx)
	if !ok {
		return false
	}
	if err := b.Store.DeleteAnalysis(ctx, token, id); err != nil {
		b.Log.Error("deleting analysis failed", zap.String("id", id), zap.Error(err))
		b.View.Alert(MsgDeleteFailed)
		return false
	}

	b.View.RemoveHistoryRow(id)
	if b.forget(id) == 0 {
		b.View.HistoryEmpty()
	}
	return true
}

// forget drops id from the listing and returns how many rows remain.
func (b *Browser) forget(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range b.ids {
		if v == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			break
		}
	}
	return len(b.ids)
}

// DeleteAll removes every record of the user after one confirmation. The
// deletions run in parallel and all of them finish before the outcome is
// reported.
func (b *Browser) DeleteAll(ctx context.Context) (int, error) {
	if !b.gate() || !b.View.Confirm(MsgConfirmDeleteAll) {
		return 0, nil
	}
	token, ok := b.token(ctx)
	if !ok {
		return 0, nil
	}

	b.View.SetBusy(ui.AreaHistory, true)
	n, err := b.deleteAll(ctx, token)
	b.View.SetBusy(ui.AreaHistory, false)

	switch {
	case err != nil:
		b.Log.Error("deleting history failed", zap.Error(err))
		if errors.Is(err, api.ErrPermissionDenied) {
			b.View.Alert(MsgPermission)
		} else {
			b.View.Alert(MsgDeleteAllPrefix + err.Error())
		}
		return 0, err
	case n == 0:
		b.View.Alert(MsgNothingToDelete)
		return 0, nil
	}

	b.setIDs(nil)
	b.View.HistoryEmpty()
	b.View.Alert(fmt.Sprintf(MsgDeletedAll, n))
	return n, nil
}

func (b *Browser) deleteAll(ctx context.Context, token string) (int, error) {
	list, err := b.Store.ListAnalyses(ctx, token, 0)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	for _, a := range list {
		id := a.ID
		g.Go(func() error {
			return b.Store.DeleteAnalysis(ctx, token, id)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(list), nil
}

// LoadLatest puts the newest record on screen unless something is already
// shown. Failures are only logged.
func (b *Browser) LoadLatest(ctx context.Context) {
	token, ok := b.token(ctx)
	if !ok {
		return
	}
	list, err := b.Store.ListAnalyses(ctx, token, 1)
	if err != nil {
		b.Log.Warn("loading latest analysis failed", zap.Error(err))
		return
	}
	if len(list) == 0 || b.State.Displayed() != nil {
		return
	}
	b.display(&list[0])
}

// RelativeTime describes t as seen at now. Older than a week it falls back
// to a DD.MM.YYYY HH:MM date in loc.
func RelativeTime(now, t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "just now"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d d ago", int(d/(24*time.Hour)))
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
