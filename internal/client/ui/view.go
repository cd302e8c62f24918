// Package ui defines what the client flows can show to the user and
// provides a terminal renderer plus an in-memory recorder.
package ui

import "time"

// Kind is the style of a message.
type Kind int

const (
	KindError Kind = iota
	KindSuccess
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindInfo:
		return "info"
	default:
		return "error"
	}
}

// Modal is a dialog the user can have open.
type Modal int

const (
	ModalNone Modal = iota
	ModalSignIn
	ModalSignUp
	ModalHistory
)

// Mode is the layout: the landing page for anonymous users or the upload
// workspace for signed-in ones.
type Mode int

const (
	ModeAnonymous Mode = iota
	ModeAuthenticated
)

// Area names a part of the screen with its own trigger and busy indicator.
type Area int

const (
	AreaAnalyze Area = iota
	AreaGenerate
	AreaHistory
)

// Message lifetimes for inline modal banners.
const (
	ErrorTTL        = 5 * time.Second
	ResetSuccessTTL = 8 * time.Second
)

// HistoryRow is one entry of the history list.
type HistoryRow struct {
	ID        string
	Thumbnail bool
	FileName  string
	When      string
	Caption   string
	Tags      []string
	// More is the number of tags not listed in Tags.
	More int
}

// Generated is a generated image next to the image it was derived from.
type Generated struct {
	ImageURL      string
	OriginalImage string
	RevisedPrompt string
}

// View is everything the flows can render. Implementations must be safe
// for concurrent use.
type View interface {
	SetMode(m Mode, greeting string)

	OpenModal(m Modal)
	CloseModal()
	ActiveModal() Modal
	ModalMessage(msg string, kind Kind, ttl time.Duration)
	ClearModalMessages()
	ClearForm()

	Notify(msg string, kind Kind)
	GenerateNotify(msg string, kind Kind)
	Alert(msg string)
	Confirm(question string) bool

	SetBusy(a Area, busy bool)
	SetEnabled(a Area, enabled bool)

	ShowSelectedFile(name string)
	ShowPreview(dataURL string)
	ShowAnalysis(caption string, tags []string)
	ShowPrompt(prompt string)
	ShowGenerated(g Generated)
	HideGenerated()
	// HideResults hides the caption and tags, the prompt section and the
	// generated image while a new analysis runs.
	HideResults()
	// ClearResults hides results, the prompt section and the generated
	// image, and empties the preview, selection and status.
	ClearResults()

	ShowHistory(rows []HistoryRow)
	HistoryEmpty()
	HistoryError(msg string)
	RemoveHistoryRow(id string)
}
