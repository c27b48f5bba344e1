// Package gcs persists history as a JSON object in Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// Config names the object holding the history.
type Config struct {
	Bucket string
	Object string
}

// Store reads and overwrites one JSON object, in the same format as the file
// store.
type Store struct {
	client *storage.Client
	cfg    Config
}

// New returns a store backed by client.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" || cfg.Object == "" {
		return nil, errors.New("history bucket and object are required")
	}
	return &Store{client: client, cfg: cfg}, nil
}

func (s *Store) object() *storage.ObjectHandle {
	return s.client.Bucket(s.cfg.Bucket).Object(s.cfg.Object)
}

// Load returns the recorded set. A missing object is an empty history.
func (s *Store) Load(ctx context.Context) (gazette.HistorySet, error) {
	r, err := s.object().NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return gazette.NewHistorySet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.cfg.Bucket, s.cfg.Object, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var locations []string
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return gazette.NewHistorySet(locations...), nil
}

// Save overwrites the object with the sorted set.
func (s *Store) Save(ctx context.Context, set gazette.HistorySet) error {
	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	w := s.object().NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload history: %w", err)
	}
	return nil
}
