// Package filterstore persists named filter-sets in a single flat JSON file.
//
// Known limitation: Load-then-Save is last-writer-wins with no cross-process
// locking. Concurrent writers can lose updates; the service assumes a single
// user. The tmp+rename write only keeps the file from being observed
// half-written.
package filterstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"immo-explorer/internal/model"
)

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns all saved filter-sets. A missing file is an empty store, not
// an error.
func (s *Store) Load() (map[string]model.FilterSet, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]model.FilterSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	out := map[string]model.FilterSet{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return out, nil
}

// Save upserts one filter-set and rewrites the whole file.
func (s *Store) Save(name string, set model.FilterSet) error {
	all, err := s.Load()
	if err != nil {
		return err
	}
	all[name] = set
	return s.write(all)
}

// Delete removes one entry and reports whether a removal happened. Deleting
// an absent name is a no-op.
func (s *Store) Delete(name string) (bool, error) {
	all, err := s.Load()
	if err != nil {
		return false, err
	}
	if _, ok := all[name]; !ok {
		return false, nil
	}
	delete(all, name)
	if err := s.write(all); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) write(all map[string]model.FilterSet) error {
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".filters-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
