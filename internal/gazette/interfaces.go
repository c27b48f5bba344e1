package gazette

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoCapture is returned by an Interceptor when no request matched before
// its wait ran out. For the daily viewer this usually means nothing was
// published that day.
var ErrNoCapture = errors.New("no matching request captured")

// Fetcher downloads a URL and returns the response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// PageExtractor turns document bytes into per-page plain text. Pages without
// extractable text are returned as empty strings so numbering stays stable.
type PageExtractor interface {
	Pages(data []byte) ([]string, error)
}

// Interceptor renders a page in a headless browser and returns the first
// outgoing request URL accepted by match.
type Interceptor interface {
	Intercept(ctx context.Context, pageURL string, match func(string) bool) (string, error)
}

// HistoryStore persists the set of processed document locations.
type HistoryStore interface {
	Load(ctx context.Context) (HistorySet, error)
	Save(ctx context.Context, set HistorySet) error
}

// Discoverer finds new documents and runs them through the processor.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context, history HistorySet) ([]Scan, error)
}

// Notifier delivers a rendered report.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
