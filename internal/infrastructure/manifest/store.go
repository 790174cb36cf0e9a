// Package manifest persists the gdm.json manifest, the single authoritative
// record of intended plugin state.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gdm.sh/cli/internal/core/domain"
)

// Store reads and writes the manifest file. Writes go through a temporary
// file in the same directory followed by a rename, so a crash mid-write
// never leaves a half-written manifest.
type Store struct {
	path string
}

// NewStore creates a store for the manifest at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the manifest file location.
func (s *Store) Path() string { return s.path }

// Load reads the manifest. A missing file yields an empty manifest; a file
// that exists but does not parse yields domain.ErrCorruptManifest.
func (s *Store) Load() (domain.Manifest, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.NewManifest(), nil
	}
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("failed to read manifest %s: %w", s.path, err)
	}

	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: %s: %v", domain.ErrCorruptManifest, s.path, err)
	}
	if m.Plugins == nil {
		m.Plugins = map[string]domain.Plugin{}
	}
	return m, nil
}

// Save writes the manifest atomically. Keys serialize in sorted order, so
// saving an unchanged manifest is byte-stable across runs.
func (s *Store) Save(m domain.Manifest) error {
	if m.Plugins == nil {
		m.Plugins = map[string]domain.Plugin{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary manifest file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest %s: %w", s.path, err)
	}
	return nil
}
