// Package file persists history as a JSON array of document locations.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// Store reads and writes a JSON file.
type Store struct {
	path string
}

// New returns a store for path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history file path is required")
	}
	return &Store{path: path}, nil
}

// Load returns the recorded set. A missing file is an empty history.
func (s *Store) Load(_ context.Context) (gazette.HistorySet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return gazette.NewHistorySet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	var locations []string
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return gazette.NewHistorySet(locations...), nil
}

// Save replaces the file with the sorted set. The write goes through a temp
// file in the same directory so a crash never leaves a truncated history.
func (s *Store) Save(_ context.Context, set gazette.HistorySet) error {
	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history %s: %w", s.path, err)
	}
	return nil
}
