package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedConfirm bool

func (f fixedConfirm) Confirm(string) bool { return bool(f) }

func newTestTerminal(c Confirmer) (*Terminal, *bytes.Buffer, *[]time.Duration) {
	var out bytes.Buffer
	var slept []time.Duration
	term := NewTerminal(&out, c)
	term.sleep = func(d time.Duration) { slept = append(slept, d) }
	return term, &out, &slept
}

func TestTerminalStaggersTags(t *testing.T) {
	term, out, slept := newTestTerminal(nil)

	term.ShowAnalysis("A cat", []string{"cat", "pet", "cute"})

	assert.Equal(t, "Caption: A cat\nTags: #cat #pet #cute\n", out.String())
	assert.Equal(t, []time.Duration{TagDelay, TagDelay}, *slept)
}

func TestTerminalPromptFollowsModal(t *testing.T) {
	term, _, _ := newTestTerminal(nil)

	assert.Equal(t, "pictag> ", term.Prompt())
	term.OpenModal(ModalSignIn)
	assert.Equal(t, "pictag(sign-in)> ", term.Prompt())
	assert.Equal(t, ModalSignIn, term.ActiveModal())
	term.CloseModal()
	assert.Equal(t, ModalNone, term.ActiveModal())
}

func TestTerminalHistory(t *testing.T) {
	term, out, _ := newTestTerminal(nil)

	term.ShowHistory([]HistoryRow{
		{ID: "a1", Thumbnail: true, FileName: "cat.png", When: "5 min ago", Caption: "A cat",
			Tags: []string{"a", "b", "c", "d", "e"}, More: 2},
		{ID: "a2", FileName: "Unknown file", When: "just now", Caption: "No description"},
	})

	want := " 1. cat.png [img] · 5 min ago\n" +
		"    A cat\n" +
		"    #a #b #c #d #e +2\n" +
		" 2. Unknown file · just now\n" +
		"    No description\n"
	assert.Equal(t, want, out.String())
}

func TestTerminalConfirm(t *testing.T) {
	term, _, _ := newTestTerminal(fixedConfirm(true))
	assert.True(t, term.Confirm("Delete?"))

	noPrompter, _, _ := newTestTerminal(nil)
	assert.False(t, noPrompter.Confirm("Delete?"))
}

func TestTerminalSkipsEmptyNotices(t *testing.T) {
	term, out, _ := newTestTerminal(nil)
	term.GenerateNotify("", KindInfo)
	term.Notify("", KindInfo)
	assert.Empty(t, out.String())

	term.Notify("Signed in successfully!", KindSuccess)
	assert.True(t, strings.HasSuffix(out.String(), "Signed in successfully!\n"))
}

func TestDescribeDataURL(t *testing.T) {
	assert.Equal(t, "image/png, 0.0 KB", describeDataURL("data:image/png;base64,iVBORw=="))
	assert.Equal(t, "unavailable", describeDataURL("https://example.com/a.png"))
}
