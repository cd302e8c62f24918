package ui

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TagDelay staggers the appearance of consecutive tags.
const TagDelay = 50 * time.Millisecond

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(question string) bool
}

// Terminal renders the client to a line-oriented terminal. Output scrolls,
// so message lifetimes are not enforced.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	confirm  Confirmer
	sleep    func(time.Duration)
	tagDelay time.Duration
	modal    Modal
}

// NewTerminal writes to out and asks confirmations through c.
func NewTerminal(out io.Writer, c Confirmer) *Terminal {
	return &Terminal{out: out, confirm: c, sleep: time.Sleep, tagDelay: TagDelay}
}

// Prompt is the command prompt for the current modal.
func (t *Terminal) Prompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.modal {
	case ModalSignIn:
		return "pictag(sign-in)> "
	case ModalSignUp:
		return "pictag(sign-up)> "
	case ModalHistory:
		return "pictag(history)> "
	default:
		return "pictag> "
	}
}

// ActiveModal returns the open modal.
func (t *Terminal) ActiveModal() Modal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.modal
}

func (t *Terminal) println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

func (t *Terminal) printf(format string, a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, a...)
}

func icon(k Kind) string {
	switch k {
	case KindSuccess:
		return "✔"
	case KindInfo:
		return "…"
	default:
		return "⚠"
	}
}

func (t *Terminal) SetMode(m Mode, greeting string) {
	if m == ModeAuthenticated {
		t.println(greeting, "Type 'help' for commands.")
		return
	}
	t.println("Welcome to PicTag. Sign in to caption and tag your images: signin | signup | google")
}

func (t *Terminal) OpenModal(m Modal) {
	t.mu.Lock()
	t.modal = m
	t.mu.Unlock()
	switch m {
	case ModalSignIn:
		t.println("== Sign in == (signin | google | reset | signup | close)")
	case ModalSignUp:
		t.println("== Create account == (signup | google | signin | close)")
	case ModalHistory:
		t.println("== History == (view <n> | delete <n> | delete-all | close)")
	}
}

func (t *Terminal) CloseModal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modal = ModalNone
}

func (t *Terminal) ModalMessage(msg string, kind Kind, _ time.Duration) {
	t.printf("  %s %s\n", icon(kind), msg)
}

func (t *Terminal) ClearModalMessages() {}

func (t *Terminal) ClearForm() {}

func (t *Terminal) Notify(msg string, kind Kind) {
	if msg == "" {
		return
	}
	t.printf("%s %s\n", icon(kind), msg)
}

func (t *Terminal) GenerateNotify(msg string, kind Kind) {
	if msg == "" {
		return
	}
	t.printf("[generate] %s %s\n", icon(kind), msg)
}

func (t *Terminal) Alert(msg string) {
	t.printf("! %s\n", msg)
}

func (t *Terminal) Confirm(question string) bool {
	if t.confirm == nil {
		return false
	}
	return t.confirm.Confirm(question)
}

// SetBusy only announces history loads; the other areas post a status
// message when they start.
func (t *Terminal) SetBusy(a Area, busy bool) {
	if busy && a == AreaHistory {
		t.println("Loading history...")
	}
}

func (t *Terminal) SetEnabled(Area, bool) {}

func (t *Terminal) ShowSelectedFile(name string) {
	t.printf("📁 %s\n", name)
}

func (t *Terminal) ShowPreview(dataURL string) {
	t.printf("Preview: %s\n", describeDataURL(dataURL))
}

// describeDataURL summarizes a base64 data URL as "<type>, <size>".
func describeDataURL(dataURL string) string {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "unavailable"
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	size := base64.StdEncoding.DecodedLen(len(payload))
	return fmt.Sprintf("%s, %.1f KB", mime, float64(size)/1024)
}

func (t *Terminal) ShowAnalysis(caption string, tags []string) {
	t.printf("Caption: %s\n", caption)
	if len(tags) == 0 {
		return
	}
	t.printf("Tags:")
	for i, tag := range tags {
		if i > 0 {
			t.sleep(t.tagDelay)
		}
		t.printf(" #%s", tag)
	}
	t.println()
}

func (t *Terminal) ShowPrompt(prompt string) {
	t.printf("Prompt for image generation: %s\n  (edit with 'prompt <text>', run 'generate')\n", prompt)
}

func (t *Terminal) ShowGenerated(g Generated) {
	t.printf("Generated image: %s\n", g.ImageURL)
	if g.OriginalImage != "" {
		t.printf("Original: %s\n", describeDataURL(g.OriginalImage))
	}
	if g.RevisedPrompt != "" {
		t.printf("Revised prompt: %s\n", g.RevisedPrompt)
	}
	t.println("  (download | again)")
}

func (t *Terminal) HideGenerated() {}

func (t *Terminal) HideResults() {}

func (t *Terminal) ClearResults() {}

func (t *Terminal) ShowHistory(rows []HistoryRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range rows {
		thumb := ""
		if r.Thumbnail {
			thumb = " [img]"
		}
		fmt.Fprintf(t.out, "%2d. %s%s · %s\n", i+1, r.FileName, thumb, r.When)
		fmt.Fprintf(t.out, "    %s\n", r.Caption)
		if len(r.Tags) > 0 || r.More > 0 {
			var b strings.Builder
			for _, tag := range r.Tags {
				b.WriteString(" #" + tag)
			}
			if r.More > 0 {
				fmt.Fprintf(&b, " +%d", r.More)
			}
			fmt.Fprintf(t.out, "   %s\n", b.String())
		}
	}
}

func (t *Terminal) HistoryEmpty() {
	t.println("No analyses yet.")
}

func (t *Terminal) HistoryError(msg string) {
	t.printf("✖ %s\n", msg)
}

func (t *Terminal) RemoveHistoryRow(string) {
	t.println("Removed.")
}
