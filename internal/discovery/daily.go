package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// DatePlaceholder is replaced in the viewer URL template with the formatted day.
const DatePlaceholder = "{date}"

const (
	defaultDateLayout  = "02-01-2006"
	defaultTitlePrefix = "Diário Oficial do Dia"
	defaultStorageHost = "cepebr-prod.s3.sa-east-1.amazonaws.com"
	titleDateLayout    = "02/01/2006"
)

// DailyConfig controls the daily-edition capture.
type DailyConfig struct {
	ViewerURLTemplate string
	DateLayout        string
	Location          *time.Location
	StorageHost       string
	Extension         string
	TitlePrefix       string
}

// DailyEdition renders the viewer for today's issue and captures the document
// request the viewer issues on its own.
type DailyEdition struct {
	cfg         DailyConfig
	interceptor gazette.Interceptor
	clock       gazette.Clock
	processor   DocumentProcessor
	logger      *zap.Logger
}

// NewDailyEdition validates cfg and returns a discoverer.
func NewDailyEdition(
	cfg DailyConfig,
	interceptor gazette.Interceptor,
	clock gazette.Clock,
	processor DocumentProcessor,
	logger *zap.Logger,
) (*DailyEdition, error) {
	if !strings.Contains(cfg.ViewerURLTemplate, DatePlaceholder) {
		return nil, fmt.Errorf("daily edition: viewer url template must contain %s", DatePlaceholder)
	}
	if interceptor == nil || clock == nil || processor == nil {
		return nil, errors.New("daily edition: interceptor, clock and processor are required")
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = defaultDateLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StorageHost == "" {
		cfg.StorageHost = defaultStorageHost
	}
	if cfg.Extension == "" {
		cfg.Extension = defaultExtension
	}
	if cfg.TitlePrefix == "" {
		cfg.TitlePrefix = defaultTitlePrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyEdition{cfg: cfg, interceptor: interceptor, clock: clock, processor: processor, logger: logger}, nil
}

// Name implements gazette.Discoverer.
func (d *DailyEdition) Name() string { return gazette.SourceDaily }

// Discover processes the edition for the current day in the configured zone.
func (d *DailyEdition) Discover(ctx context.Context, history gazette.HistorySet) ([]gazette.Scan, error) {
	return d.DiscoverOn(ctx, d.clock.Now(), history)
}

// DiscoverOn processes the edition published on day.
func (d *DailyEdition) DiscoverOn(ctx context.Context, day time.Time, history gazette.HistorySet) ([]gazette.Scan, error) {
	day = day.In(d.cfg.Location)
	viewer := d.ViewerURL(day)
	logger := d.logger.With(zap.String("viewer", viewer))
	logger.Info("capturing daily edition")

	captured, err := d.interceptor.Intercept(ctx, viewer, d.isDocumentRequest)
	if err != nil {
		return nil, fmt.Errorf("capture daily edition: %w", err)
	}
	location, err := canonicalize(captured)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %q: %w", captured, err)
	}
	logger.Info("daily edition captured", zap.String("url", location))

	doc := gazette.Document{
		Location: location,
		Title:    fmt.Sprintf("%s %s", d.cfg.TitlePrefix, day.Format(titleDateLayout)),
	}
	return []gazette.Scan{d.processor.Process(ctx, gazette.SourceDaily, doc, history)}, nil
}

// ViewerURL fills the template for day.
func (d *DailyEdition) ViewerURL(day time.Time) string {
	return strings.ReplaceAll(d.cfg.ViewerURLTemplate, DatePlaceholder, day.In(d.cfg.Location).Format(d.cfg.DateLayout))
}

// isDocumentRequest accepts requests to the storage origin whose path ends in
// the document extension.
func (d *DailyEdition) isDocumentRequest(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, d.cfg.StorageHost) && hasExtension(u.Path, d.cfg.Extension)
}

// canonicalize drops the query and fragment; signed storage URLs carry
// per-request credentials there.
func canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
