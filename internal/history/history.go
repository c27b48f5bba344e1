// Package history selects the backend that remembers processed documents.
package history

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/history/file"
	gcshistory "github.com/JakeFAU/gazette-watch/internal/history/gcs"
	"github.com/JakeFAU/gazette-watch/internal/history/memory"
	"github.com/JakeFAU/gazette-watch/internal/history/postgres"
	"github.com/JakeFAU/gazette-watch/internal/history/sqlite"
)

// Provider names.
const (
	ProviderFile     = "file"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderGCS      = "gcs"
	ProviderMemory   = "memory"
)

// ErrUnknownProvider is returned for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown history provider")

// Options carries the settings for every backend; only the selected one is read.
type Options struct {
	Provider   string
	FilePath   string
	SQLitePath string
	Postgres   postgres.Config
	GCSBucket  string
	GCSObject  string
	// GCSOptions are passed to the storage client, e.g. an emulator endpoint.
	GCSOptions []option.ClientOption
}

// Store is a history backend plus its cleanup.
type Store struct {
	gazette.HistoryStore
	closeFn func() error
}

// Close releases backend resources.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (*Store, error) {
	switch opts.Provider {
	case ProviderFile, "":
		st, err := file.New(opts.FilePath)
		if err != nil {
			return nil, err
		}
		return &Store{HistoryStore: st}, nil
	case ProviderMemory:
		return &Store{HistoryStore: memory.New()}, nil
	case ProviderSQLite:
		st, err := sqlite.New(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{HistoryStore: st, closeFn: st.Close}, nil
	case ProviderPostgres:
		st, err := postgres.New(ctx, opts.Postgres)
		if err != nil {
			return nil, err
		}
		return &Store{HistoryStore: st, closeFn: func() error { st.Close(); return nil }}, nil
	case ProviderGCS:
		client, err := storage.NewClient(ctx, opts.GCSOptions...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		st, err := gcshistory.New(client, gcshistory.Config{Bucket: opts.GCSBucket, Object: opts.GCSObject})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Store{HistoryStore: st, closeFn: client.Close}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
