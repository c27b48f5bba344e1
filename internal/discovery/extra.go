package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

const (
	defaultExtraMarker  = "Edição Extra"
	defaultExtension    = ".pdf"
	defaultIndexTimeout = 30 * time.Second
)

// ExtraConfig controls the extra-edition index scrape.
type ExtraConfig struct {
	IndexURL     string
	Marker       string
	Extension    string
	IndexTimeout time.Duration
}

// ExtraEditions lists special editions linked from the static index page.
type ExtraEditions struct {
	cfg       ExtraConfig
	fetcher   gazette.Fetcher
	processor DocumentProcessor
	logger    *zap.Logger
}

// NewExtraEditions validates cfg and returns a discoverer.
func NewExtraEditions(cfg ExtraConfig, fetcher gazette.Fetcher, processor DocumentProcessor, logger *zap.Logger) (*ExtraEditions, error) {
	if cfg.IndexURL == "" {
		return nil, errors.New("extra editions: index url is required")
	}
	if _, err := url.Parse(cfg.IndexURL); err != nil {
		return nil, fmt.Errorf("extra editions: parse index url: %w", err)
	}
	if fetcher == nil || processor == nil {
		return nil, errors.New("extra editions: fetcher and processor are required")
	}
	if cfg.Marker == "" {
		cfg.Marker = defaultExtraMarker
	}
	if cfg.Extension == "" {
		cfg.Extension = defaultExtension
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = defaultIndexTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtraEditions{cfg: cfg, fetcher: fetcher, processor: processor, logger: logger}, nil
}

// Name implements gazette.Discoverer.
func (e *ExtraEditions) Name() string { return gazette.SourceExtra }

// Discover fetches the index and processes every matching link. Only an
// unreachable or unparsable index is returned as an error.
func (e *ExtraEditions) Discover(ctx context.Context, history gazette.HistorySet) ([]gazette.Scan, error) {
	e.logger.Info("checking extra editions", zap.String("index", e.cfg.IndexURL))
	body, err := e.fetcher.Fetch(ctx, e.cfg.IndexURL, e.cfg.IndexTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", e.cfg.IndexURL, err)
	}
	docs, err := e.links(body)
	if err != nil {
		return nil, err
	}
	e.logger.Info("extra editions listed", zap.Int("documents", len(docs)))

	scans := make([]gazette.Scan, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return scans, err
		}
		scans = append(scans, e.processor.Process(ctx, gazette.SourceExtra, doc, history))
	}
	return scans, nil
}

// links returns the index's anchors whose text carries the marker and whose
// target path ends with the document extension, in page order.
func (e *ExtraEditions) links(body []byte) ([]gazette.Document, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	base, err := url.Parse(e.cfg.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	var docs []gazette.Document
	page.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		if !strings.Contains(title, e.cfg.Marker) {
			return
		}
		href, _ := s.Attr("href")
		target, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			e.logger.Debug("skipping malformed link", zap.String("href", href), zap.Error(err))
			return
		}
		if !hasExtension(target.Path, e.cfg.Extension) {
			return
		}
		docs = append(docs, gazette.Document{Location: target.String(), Title: title})
	})
	return docs, nil
}

func hasExtension(path, ext string) bool {
	return strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext))
}
