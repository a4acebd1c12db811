package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"golang.org/x/oauth2"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "token.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)

	in := &oauth2.Token{AccessToken: "abc123", TokenType: "Bearer"}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out == nil || out.AccessToken != "abc123" || out.TokenType != "Bearer" {
		t.Errorf("loaded token = %+v", out)
	}
	if !s.LoggedIn() {
		t.Error("LoggedIn = false after save")
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := tempStore(t)

	tok, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != nil {
		t.Errorf("token = %+v, want nil", tok)
	}
	if s.LoggedIn() {
		t.Error("LoggedIn = true with no token file")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("expected error for corrupt token file")
	}
	if s.LoggedIn() {
		t.Error("LoggedIn = true with corrupt token file")
	}
}

func TestSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	s := tempStore(t)
	if err := s.Save(&oauth2.Token{AccessToken: "secret"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("token file mode = %o, want 600", got)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(&oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("token file missing: %v", err)
	}
}

func TestClear(t *testing.T) {
	s := tempStore(t)
	if err := s.Save(&oauth2.Token{AccessToken: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.LoggedIn() {
		t.Error("LoggedIn = true after Clear")
	}
	// Clearing twice is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}
