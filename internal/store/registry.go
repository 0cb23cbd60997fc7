package store

import (
	"os"
	"sync"
)

// RegistryStore is the name->filePath map for one file-based engine
// (registry/sqlite.json, registry/duckdb.json, §6).
type RegistryStore struct {
	path string
	mu   sync.Mutex
}

// NewRegistryStore builds a store backed by the file at path.
func NewRegistryStore(path string) *RegistryStore {
	return &RegistryStore{path: path}
}

func (s *RegistryStore) loadLocked() (map[string]string, error) {
	entries := map[string]string{}
	if _, err := readInto(s.path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns the full name->filePath map.
func (s *RegistryStore) List() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Get returns the recorded file path for name, if any.
func (s *RegistryStore) Get(name string) (path string, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	path, found = entries[name]
	return path, found, nil
}

// Update sets or replaces the file path recorded for name.
func (s *RegistryStore) Update(name, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries[name] = filePath
	return writeAtomic(s.path, entries)
}

// Remove deletes name's entry, if present.
func (s *RegistryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	delete(entries, name)
	return writeAtomic(s.path, entries)
}

// FindOrphans returns entries whose file no longer exists on disk.
func (s *RegistryStore) FindOrphans() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	orphans := map[string]string{}
	for name, path := range entries {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			orphans[name] = path
		}
	}
	return orphans, nil
}

// RemoveOrphans deletes every entry FindOrphans would report, returning
// how many were removed.
func (s *RegistryStore) RemoveOrphans() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return 0, err
	}

	removed := 0
	for name, path := range entries {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			delete(entries, name)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, writeAtomic(s.path, entries)
}
