// Package processor downloads gazette documents and scans their pages for
// watched people.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/matcher"
	"github.com/JakeFAU/gazette-watch/internal/metrics"
)

const defaultDocumentTimeout = 120 * time.Second

// Config controls Processor behavior.
type Config struct {
	Watchlist       []gazette.WatchedPerson
	DocumentTimeout time.Duration
	// ArchivePrefix is the blob path prefix for archived documents.
	ArchivePrefix string
}

// Processor fetches one document at a time and runs the matcher over each
// page. It is meant to live for a single run: it remembers which locations it
// already handled so two discovery paths never fetch the same document twice.
type Processor struct {
	fetcher   gazette.Fetcher
	extractor gazette.PageExtractor
	archive   gazette.BlobStore
	hasher    gazette.Hasher
	cfg       Config
	logger    *zap.Logger
	handled   map[string]struct{}
}

// New constructs a Processor. archive and hasher may be nil to disable archiving.
func New(
	fetcher gazette.Fetcher,
	extractor gazette.PageExtractor,
	archive gazette.BlobStore,
	hasher gazette.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = defaultDocumentTimeout
	}
	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		archive:   archive,
		hasher:    hasher,
		cfg:       cfg,
		logger:    logger,
		handled:   make(map[string]struct{}),
	}
}

// Process scans doc unless history (or this run) already covered it. Fetch and
// parse failures are logged and reported on the Scan, never returned.
func (p *Processor) Process(ctx context.Context, source string, doc gazette.Document, history gazette.HistorySet) gazette.Scan {
	scan := gazette.Scan{Document: doc, Source: source}
	logger := p.logger.With(zap.String("source", source), zap.String("url", doc.Location), zap.String("title", doc.Title))

	if history.Has(doc.Location) {
		logger.Info("document already processed; skipping")
		scan.Skipped = true
		metrics.ObserveDocument(source, metrics.OutcomeSkipped)
		return scan
	}
	if _, seen := p.handled[doc.Location]; seen {
		logger.Info("document already handled in this run; skipping")
		scan.Skipped = true
		metrics.ObserveDocument(source, metrics.OutcomeSkipped)
		return scan
	}
	p.handled[doc.Location] = struct{}{}

	logger.Info("downloading document")
	data, err := p.fetcher.Fetch(ctx, doc.Location, p.cfg.DocumentTimeout)
	if err != nil {
		logger.Error("document download failed", zap.Error(err))
		scan.Err = fmt.Errorf("fetch %s: %w", doc.Location, err)
		metrics.ObserveDocument(source, metrics.OutcomeFailed)
		return scan
	}

	scan.ArchiveURI = p.archiveDocument(ctx, logger, data)

	pages, err := p.extractor.Pages(data)
	if err != nil {
		logger.Error("document parse failed", zap.Error(err))
		scan.Err = fmt.Errorf("parse %s: %w", doc.Location, err)
		metrics.ObserveDocument(source, metrics.OutcomeFailed)
		return scan
	}
	scan.Fetched = true
	scan.Pages = len(pages)
	logger.Info("document opened", zap.Int("pages", len(pages)))

	scan.Findings = p.scanPages(logger, source, doc, pages, scan.ArchiveURI)

	metrics.ObserveDocument(source, metrics.OutcomeScanned)
	metrics.ObserveFindings(source, len(scan.Findings))
	logger.Info("document processed", zap.Int("findings", len(scan.Findings)))
	return scan
}

// scanPages returns at most one finding per watched person: the first page
// where any identifier matched.
func (p *Processor) scanPages(logger *zap.Logger, source string, doc gazette.Document, pages []string, archiveURI string) []gazette.Finding {
	var findings []gazette.Finding
	found := make([]bool, len(p.cfg.Watchlist))
	remaining := len(p.cfg.Watchlist)
	scanned := 0

	for i, raw := range pages {
		if remaining == 0 {
			break
		}
		if strings.TrimSpace(raw) == "" {
			logger.Debug("page has no extractable text", zap.Int("page", i+1))
			continue
		}
		scanned++
		text := matcher.Normalize(raw)
		for j, person := range p.cfg.Watchlist {
			if found[j] {
				continue
			}
			res := matcher.Match(person, text)
			if !res.Any() {
				continue
			}
			found[j] = true
			remaining--
			logger.Info("watched person found",
				zap.String("person", person.FullName),
				zap.Int("page", i+1),
				zap.Bool("name", res.Name),
				zap.Bool("registration", res.Registration),
				zap.Bool("tax_id", res.TaxID),
			)
			findings = append(findings, gazette.Finding{
				Person:                person,
				Page:                  i + 1,
				Document:              doc,
				MatchedByName:         res.Name,
				MatchedByRegistration: res.Registration,
				MatchedByTaxID:        res.TaxID,
				ArchiveURI:            archiveURI,
			})
		}
	}
	metrics.ObservePages(source, scanned)
	return findings
}

func (p *Processor) archiveDocument(ctx context.Context, logger *zap.Logger, data []byte) string {
	if p.archive == nil || p.hasher == nil {
		return ""
	}
	sum, err := p.hasher.Hash(data)
	if err != nil {
		logger.Warn("hash document failed", zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s.pdf", sum)
	if prefix := strings.Trim(p.cfg.ArchivePrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := p.archive.PutObject(ctx, path, "application/pdf", bytes.NewReader(data))
	if err != nil {
		logger.Warn("archive document failed", zap.Error(err))
		return ""
	}
	logger.Info("document archived", zap.String("uri", uri))
	return uri
}
