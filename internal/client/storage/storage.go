// Package storage keeps the client's local state: the persisted session,
// interactive prompts and the HTTP client used to reach the server.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultSessionFile is used when no session path is configured.
const DefaultSessionFile = "pictag-session.json"

// LocalStorage persists the signed-in session in a JSON file readable only
// by the current user.
type LocalStorage struct {
	Path string
	mu   sync.Mutex
}

// NewLocalStorage returns storage backed by path.
func NewLocalStorage(path string) *LocalStorage {
	if path == "" {
		path = DefaultSessionFile
	}
	return &LocalStorage{Path: path}
}

// Load returns the stored session, or nil when none was saved.
func (ls *LocalStorage) Load() (*Session, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	f, err := os.Open(ls.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var s Session
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.RefreshToken == "" || s.UID == "" {
		return nil, nil
	}
	return &s, nil
}

// Save replaces the stored session.
func (ls *LocalStorage) Save(s *Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if dir := filepath.Dir(ls.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	f, err := os.OpenFile(ls.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(s)
}

// Clear removes the stored session. A missing file is not an error.
func (ls *LocalStorage) Clear() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := os.Remove(ls.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
