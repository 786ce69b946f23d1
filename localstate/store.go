// Package localstate persists the "admin session present" flag between
// process starts.
package localstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Persisted is the locally remembered session state.
type Persisted struct {
	AdminSession bool      `yaml:"admin_session"`
	AdminEmail   string    `yaml:"admin_email,omitempty"`
	SavedAt      time.Time `yaml:"saved_at,omitempty"`
}

// Store loads and saves Persisted. Bootstrap reads it once per pass.
type Store interface {
	LoadPersistedSession() (Persisted, error)
	SaveAdminSession(email string) error
	ClearPersistedSession() error
}

// DefaultFileName is used by DefaultPath.
const DefaultFileName = "session.yaml"

// DefaultPath returns <user config dir>/wanderauth/session.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get config directory: %w", err)
	}
	return filepath.Join(dir, "wanderauth", DefaultFileName), nil
}

// FileStore keeps Persisted in a YAML file.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string {
	return s.path
}

// LoadPersistedSession returns the zero value when the file does not exist.
func (s *FileStore) LoadPersistedSession() (Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Persisted{}, nil
		}
		return Persisted{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var p Persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return p, nil
}

func (s *FileStore) SaveAdminSession(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(Persisted{AdminSession: true, AdminEmail: email, SavedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// ClearPersistedSession removes the file. A missing file is not an error.
func (s *FileStore) ClearPersistedSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore keeps Persisted in memory.
type MemoryStore struct {
	mu sync.Mutex
	p  Persisted
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadPersistedSession() (Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, nil
}

func (s *MemoryStore) SaveAdminSession(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Persisted{AdminSession: true, AdminEmail: email, SavedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) ClearPersistedSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Persisted{}
	return nil
}
