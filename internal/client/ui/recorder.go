package ui

import (
	"sync"
	"time"
)

// Notice is a recorded message.
type Notice struct {
	Msg  string
	Kind Kind
	TTL  time.Duration
}

// Recorder is a View that remembers what was rendered. Fields may be read
// directly once the flow under test has returned; use With while other
// goroutines may still render.
type Recorder struct {
	mu sync.Mutex

	// ConfirmAnswer is returned by Confirm.
	ConfirmAnswer bool

	Mode     Mode
	Greeting string

	Modal         Modal
	ModalMessages []Notice
	ModalCleared  int
	FormCleared   int

	Notices         []Notice
	GenerateNotices []Notice
	Alerts          []string
	Confirms        []string

	Busy    map[Area]bool
	Enabled map[Area][]bool

	SelectedFile   string
	Preview        string
	Caption        string
	Tags           []string
	ResultsVisible bool
	Prompt         string
	PromptVisible  bool
	Generated      *Generated
	ResultsCleared int

	History        []HistoryRow
	HistoryShown   bool
	HistoryIsEmpty bool
	HistoryErr     string
	Removed        []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{Busy: map[Area]bool{}, Enabled: map[Area][]bool{}}
}

// With runs f while holding the recorder's lock.
func (r *Recorder) With(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
}

// LastNotice returns the most recent status message.
func (r *Recorder) LastNotice() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Notices) == 0 {
		return Notice{}
	}
	return r.Notices[len(r.Notices)-1]
}

// LastGenerateNotice returns the most recent generation status message.
func (r *Recorder) LastGenerateNotice() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.GenerateNotices) == 0 {
		return Notice{}
	}
	return r.GenerateNotices[len(r.GenerateNotices)-1]
}

// LastModalMessage returns the most recent inline modal message.
func (r *Recorder) LastModalMessage() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ModalMessages) == 0 {
		return Notice{}
	}
	return r.ModalMessages[len(r.ModalMessages)-1]
}

func (r *Recorder) SetMode(m Mode, greeting string) {
	r.With(func() { r.Mode, r.Greeting = m, greeting })
}

func (r *Recorder) OpenModal(m Modal) {
	r.With(func() { r.Modal = m })
}

func (r *Recorder) CloseModal() {
	r.With(func() { r.Modal = ModalNone })
}

func (r *Recorder) ActiveModal() Modal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Modal
}

func (r *Recorder) ModalMessage(msg string, kind Kind, ttl time.Duration) {
	r.With(func() { r.ModalMessages = append(r.ModalMessages, Notice{msg, kind, ttl}) })
}

func (r *Recorder) ClearModalMessages() {
	r.With(func() { r.ModalCleared++ })
}

func (r *Recorder) ClearForm() {
	r.With(func() { r.FormCleared++ })
}

func (r *Recorder) Notify(msg string, kind Kind) {
	r.With(func() { r.Notices = append(r.Notices, Notice{Msg: msg, Kind: kind}) })
}

func (r *Recorder) GenerateNotify(msg string, kind Kind) {
	r.With(func() { r.GenerateNotices = append(r.GenerateNotices, Notice{Msg: msg, Kind: kind}) })
}

func (r *Recorder) Alert(msg string) {
	r.With(func() { r.Alerts = append(r.Alerts, msg) })
}

func (r *Recorder) Confirm(question string) bool {
	var answer bool
	r.With(func() {
		r.Confirms = append(r.Confirms, question)
		answer = r.ConfirmAnswer
	})
	return answer
}

func (r *Recorder) SetBusy(a Area, busy bool) {
	r.With(func() { r.Busy[a] = busy })
}

func (r *Recorder) SetEnabled(a Area, enabled bool) {
	r.With(func() { r.Enabled[a] = append(r.Enabled[a], enabled) })
}

func (r *Recorder) ShowSelectedFile(name string) {
	r.With(func() { r.SelectedFile = name })
}

func (r *Recorder) ShowPreview(dataURL string) {
	r.With(func() { r.Preview = dataURL })
}

func (r *Recorder) ShowAnalysis(caption string, tags []string) {
	r.With(func() {
		r.Caption = caption
		r.Tags = append([]string(nil), tags...)
		r.ResultsVisible = true
	})
}

func (r *Recorder) ShowPrompt(prompt string) {
	r.With(func() { r.Prompt, r.PromptVisible = prompt, true })
}

func (r *Recorder) ShowGenerated(g Generated) {
	r.With(func() { r.Generated = &g })
}

func (r *Recorder) HideGenerated() {
	r.With(func() { r.Generated = nil })
}

func (r *Recorder) HideResults() {
	r.With(func() {
		r.ResultsVisible, r.PromptVisible = false, false
		r.Generated = nil
	})
}

func (r *Recorder) ClearResults() {
	r.With(func() {
		r.ResultsCleared++
		r.SelectedFile, r.Preview, r.Caption, r.Prompt = "", "", "", ""
		r.Tags = nil
		r.ResultsVisible, r.PromptVisible = false, false
		r.Generated = nil
	})
}

func (r *Recorder) ShowHistory(rows []HistoryRow) {
	r.With(func() {
		r.History = append([]HistoryRow(nil), rows...)
		r.HistoryShown, r.HistoryIsEmpty, r.HistoryErr = true, false, ""
	})
}

func (r *Recorder) HistoryEmpty() {
	r.With(func() {
		r.History = nil
		r.HistoryIsEmpty = true
	})
}

func (r *Recorder) HistoryError(msg string) {
	r.With(func() { r.HistoryErr = msg })
}

func (r *Recorder) RemoveHistoryRow(id string) {
	r.With(func() {
		r.Removed = append(r.Removed, id)
		for i, row := range r.History {
			if row.ID == id {
				r.History = append(r.History[:i], r.History[i+1:]...)
				break
			}
		}
	})
}
