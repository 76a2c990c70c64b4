// Package drafts is a small synchronous key→string store for transient form
// state. Each key is one file, replaced atomically on every Set.
package drafts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/promptvault/internal/filex"
)

type Store interface {
	Set(key, value string) error
	Get(key string) (string, bool)
	Delete(key string) error
}

type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: abs}, nil
}

// filename hex-encodes the key so any key maps to a safe file name.
func (s *FileStore) filename(key string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+".draft")
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := filex.WriteFileAtomic(s.filename(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	return nil
}

// Get returns the stored value; unreadable files count as absent.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.filename(key))
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filename(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps drafts in memory only.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
