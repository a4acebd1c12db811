// Package session persists the backend bearer token between runs. Token
// acquisition itself lives in internal/api (Login); this package only owns
// storage and the logged-in gate.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// Store reads and writes the token file. The file holds a JSON-encoded
// oauth2.Token with 0600 permissions.
type Store struct {
	path string
}

// NewStore creates a store at the given path. An empty path resolves to
// ~/.weekcal/token.json.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".weekcal", "token.json")
	}
	return &Store{path: path}, nil
}

// Load returns the stored token, or nil if none has been saved.
func (s *Store) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to log in again): %w", s.path, err)
	}
	return &tok, nil
}

// Save persists the token atomically with 0600 permissions.
func (s *Store) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token is nil")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// LoggedIn reports whether a usable token is stored. This is the
// authorization precondition gate for the calendar view; actual rejection
// still comes from the backend (401) when the token has expired server-side.
func (s *Store) LoggedIn() bool {
	tok, err := s.Load()
	return err == nil && tok.Valid()
}
