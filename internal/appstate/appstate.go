// Package appstate holds the signed-in user, the API token and the UI theme.
// The state is injected into the components that need it and persisted as
// YAML so that a CLI invocation or a restarted server picks it up again.
package appstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultTheme is used until the user picks another one.
const DefaultTheme = "forest"

var themePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)

// User is the signed-in account.
type User struct {
	ID    string `yaml:"id" json:"_id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

type persisted struct {
	User  *User  `yaml:"user,omitempty"`
	Token string `yaml:"token,omitempty"`
	Theme string `yaml:"theme"`
}

// State is the application state. The zero value is not usable; build one
// with New or Hydrate.
type State struct {
	path string

	mu   sync.RWMutex
	data persisted
}

// DefaultPath returns ~/.webgen/session.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", weberrors.NewIOError(weberrors.ErrCodeIO, "locating home directory", err)
	}
	return filepath.Join(home, ".webgen", "session.yaml"), nil
}

// New returns a fresh state persisted at path. An empty path keeps the
// state in memory only.
func New(path string) *State {
	return &State{path: path, data: persisted{Theme: DefaultTheme}}
}

// Hydrate loads the state persisted at path. A missing file yields a fresh
// state.
func Hydrate(path string) (*State, error) {
	s := New(path)
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "reading session file", err)
	}

	var p persisted
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("session file %s is not valid YAML: %v", path, err))
	}
	if !themePattern.MatchString(p.Theme) {
		p.Theme = DefaultTheme
	}
	s.data = p
	return s, nil
}

// Path returns where the state is persisted.
func (s *State) Path() string {
	return s.path
}

// User returns a copy of the signed-in user, or nil.
func (s *State) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// Token returns the API bearer token.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

// Theme returns the UI theme.
func (s *State) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Theme
}

// SignedIn reports whether a user and token are present.
func (s *State) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.User != nil && s.data.Token != ""
}

// SetTheme changes and persists the theme.
func (s *State) SetTheme(theme string) error {
	if !themePattern.MatchString(theme) {
		return weberrors.NewValidationError(weberrors.ErrCodeValidationFailed,
			fmt.Sprintf("invalid theme name %q", theme))
	}
	return s.update(func(p *persisted) { p.Theme = theme })
}

// SetToken replaces and persists the bearer token. The REST client calls
// it after a refresh.
func (s *State) SetToken(token string) error {
	return s.update(func(p *persisted) { p.Token = token })
}

// SignIn stores the user and token of a successful login.
func (s *State) SignIn(user User, token string) error {
	if user.ID == "" || token == "" {
		return weberrors.NewValidationError(weberrors.ErrCodeValidationFailed, "sign-in needs a user id and a token")
	}
	return s.update(func(p *persisted) {
		p.User = &user
		p.Token = token
	})
}

// Clear signs out: user and token are dropped, the theme is kept.
func (s *State) Clear() error {
	return s.update(func(p *persisted) {
		p.User = nil
		p.Token = ""
	})
}

func (s *State) update(fn func(*persisted)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	if next.User != nil {
		u := *next.User
		next.User = &u
	}
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// write replaces the session file atomically. The token makes it private
// to the owner.
func (s *State) write(p persisted) error {
	if s.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(&p)
	if err != nil {
		return weberrors.NewInternalError(weberrors.ErrCodeInternal, "encoding session", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "creating session directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing session file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing session file", err)
	}
	if err := tmp.Close(); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing session file", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing session file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing session file", err)
	}
	return nil
}
