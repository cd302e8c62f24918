// Package session holds the client's application state: who is signed in
// and which analysis is on screen.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/atinyakov/PicTag/internal/client/identity"
)

// MaxPromptTags is how many tags seed the generation prompt.
const MaxPromptTags = 10

// Analysis is the result currently shown to the user.
type Analysis struct {
	ID           string
	FileName     string
	Caption      string
	Tags         []string
	ImagePreview string
}

// Prompt joins the first MaxPromptTags tags with ", ".
func (a *Analysis) Prompt() string {
	tags := a.Tags
	if len(tags) > MaxPromptTags {
		tags = tags[:MaxPromptTags]
	}
	return strings.Join(tags, ", ")
}

// State is the owned application state. The identity is written only by
// Run; the displayed analysis and prompt are written by the flows.
type State struct {
	mu        sync.Mutex
	user      *identity.User
	displayed *Analysis
	prompt    string

	subs   map[int]chan *identity.User
	nextID int
	closed bool
}

// New returns an empty, signed-out state.
func New() *State {
	return &State{subs: make(map[int]chan *identity.User)}
}

// Run applies identity changes from events until ctx is done or events is
// closed, then closes every subscription.
func (s *State) Run(ctx context.Context, events <-chan *identity.User) {
	defer s.close()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-events:
			if !ok {
				return
			}
			s.setUser(u)
		}
	}
}

func (s *State) setUser(u *identity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	for _, ch := range s.subs {
		offer(ch, u)
	}
}

// offer replaces any value the subscriber has not read yet.
func offer(ch chan *identity.User, u *identity.User) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

func (s *State) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Subscribe returns a channel that first yields the current identity and
// then every change. The channel is closed by cancel or when Run returns.
func (s *State) Subscribe() (<-chan *identity.User, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *identity.User, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.user
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
	return ch, cancel
}

// User returns the signed-in identity or nil.
func (s *State) User() *identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Displayed returns a copy of the analysis on screen, or nil.
func (s *State) Displayed() *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displayed == nil {
		return nil
	}
	a := *s.displayed
	a.Tags = append([]string(nil), s.displayed.Tags...)
	return &a
}

// Show puts a on screen and seeds the generation prompt from its tags.
// It returns the prompt.
func (s *State) Show(a *Analysis) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Tags = append([]string(nil), a.Tags...)
	s.displayed = &cp
	s.prompt = cp.Prompt()
	return s.prompt
}

// Clear removes the displayed analysis and the prompt.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayed = nil
	s.prompt = ""
}

// Prompt returns the editable generation prompt.
func (s *State) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// SetPrompt replaces the generation prompt.
func (s *State) SetPrompt(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = p
}
