package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Theme is the colour scheme preference
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"

	// DefaultTheme applies when nothing valid is stored
	DefaultTheme = ThemeDark
)

// Store holds the persisted theme preference
type Store interface {
	Theme() Theme
	Toggle() (Theme, error)
}

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// Next returns the other theme
func (t Theme) Next() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// document is the on-disk layout
type document struct {
	ThemeMode Theme `yaml:"themeMode"`
}

// FileStore keeps the preference in a YAML file. The file is read once by
// Open and written on every Toggle.
type FileStore struct {
	mu    sync.Mutex
	path  string
	theme Theme
}

// Open reads the preference file. A missing or unreadable value falls back
// to DefaultTheme.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, theme: DefaultTheme}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if doc.ThemeMode.Valid() {
		s.theme = doc.ThemeMode
	}
	return s, nil
}

// Path returns the settings file location
func (s *FileStore) Path() string {
	return s.path
}

// Theme returns the current theme
func (s *FileStore) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Toggle flips the theme and persists it. On a write error the in-memory
// value is left unchanged.
func (s *FileStore) Toggle() (Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.theme.Next()
	if err := s.write(next); err != nil {
		return s.theme, err
	}
	s.theme = next
	return next, nil
}

func (s *FileStore) write(t Theme) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := yaml.Marshal(document{ThemeMode: t})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// MemoryStore is a Store that is never persisted
type MemoryStore struct {
	mu    sync.Mutex
	theme Theme
}

// NewMemoryStore creates an in-memory store starting at t, or DefaultTheme
func NewMemoryStore(t Theme) *MemoryStore {
	if !t.Valid() {
		t = DefaultTheme
	}
	return &MemoryStore{theme: t}
}

func (m *MemoryStore) Theme() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

func (m *MemoryStore) Toggle() (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = m.theme.Next()
	return m.theme, nil
}
