// Package runner drives one monitoring pass: load history, discover and scan
// documents, notify, and commit history.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/metrics"
	"github.com/JakeFAU/gazette-watch/internal/report"
)

// ErrDiscoveryOutage is returned when every discoverer failed and the
// controller is configured to treat that as a failed run.
var ErrDiscoveryOutage = errors.New("every discovery phase failed")

// Renderer turns an aggregated report into a message.
type Renderer interface {
	Render(rep gazette.Report) (gazette.Message, error)
}

// Options tune the controller.
type Options struct {
	RecordPolicy          gazette.RecordPolicy
	FailOnDiscoveryOutage bool
}

// Controller runs discoverers in order against a shared history snapshot.
type Controller struct {
	store       gazette.HistoryStore
	discoverers []gazette.Discoverer
	renderer    Renderer
	notifier    gazette.Notifier
	clock       gazette.Clock
	ids         gazette.IDGenerator
	opts        Options
	logger      *zap.Logger
}

// Summary describes a finished run.
type Summary struct {
	RunID             string
	Documents         int
	Scanned           int
	Skipped           int
	Failed            int
	Findings          int
	DiscoveryFailures int
	Notified          bool
	NotifyErr         error
	Recorded          []string
	HistorySize       int
}

// New builds a Controller. notifier may be nil.
func New(
	store gazette.HistoryStore,
	discoverers []gazette.Discoverer,
	renderer Renderer,
	notifier gazette.Notifier,
	clock gazette.Clock,
	ids gazette.IDGenerator,
	opts Options,
	logger *zap.Logger,
) (*Controller, error) {
	if store == nil || renderer == nil || clock == nil || ids == nil {
		return nil, errors.New("runner: store, renderer, clock and id generator are required")
	}
	if opts.RecordPolicy == "" {
		opts.RecordPolicy = gazette.RecordMatched
	}
	if !opts.RecordPolicy.Valid() {
		return nil, fmt.Errorf("runner: unknown record policy %q", opts.RecordPolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:       store,
		discoverers: discoverers,
		renderer:    renderer,
		notifier:    notifier,
		clock:       clock,
		ids:         ids,
		opts:        opts,
		logger:      logger,
	}, nil
}

// Run executes a single pass. Discovery and notification failures are logged
// and reflected in the Summary; only history I/O (and, when enabled, a total
// discovery outage) fail the run.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	runID, err := c.ids.NewID()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunID: runID}
	logger := c.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.String("record_policy", string(c.opts.RecordPolicy)))

	history, err := c.store.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load history: %w", err)
	}
	logger.Info("history loaded", zap.Int("documents", len(history)))

	var scans []gazette.Scan
	for _, d := range c.discoverers {
		found, err := d.Discover(ctx, history)
		scans = append(scans, found...)
		if err != nil {
			summary.DiscoveryFailures++
			metrics.ObserveDiscoveryFailure(d.Name())
			if errors.Is(err, gazette.ErrNoCapture) {
				logger.Warn("no document published", zap.String("source", d.Name()), zap.Error(err))
				continue
			}
			logger.Error("discovery failed", zap.String("source", d.Name()), zap.Error(err))
			continue
		}
		logger.Info("discovery finished", zap.String("source", d.Name()), zap.Int("documents", len(found)))
	}
	c.tally(&summary, scans)

	findings := gazette.Findings(scans)
	summary.Findings = len(findings)
	logger.Info("scan finished",
		zap.Int("documents", summary.Documents),
		zap.Int("scanned", summary.Scanned),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("findings", summary.Findings),
	)

	if len(findings) > 0 {
		c.notify(ctx, logger, runID, findings, &summary)
	} else {
		logger.Info("no new findings")
	}

	for _, loc := range c.toRecord(scans) {
		if history.Add(loc) {
			summary.Recorded = append(summary.Recorded, loc)
		}
	}
	summary.HistorySize = len(history)
	if len(summary.Recorded) > 0 {
		if err := c.store.Save(ctx, history); err != nil {
			return summary, fmt.Errorf("save history: %w", err)
		}
		logger.Info("history updated", zap.Int("added", len(summary.Recorded)), zap.Int("documents", len(history)))
	}

	metrics.ObserveRun(time.Since(started), len(history))

	if c.opts.FailOnDiscoveryOutage && len(c.discoverers) > 0 && summary.DiscoveryFailures == len(c.discoverers) {
		return summary, ErrDiscoveryOutage
	}
	logger.Info("run finished", zap.Duration("elapsed", time.Since(started)))
	return summary, nil
}

func (c *Controller) tally(s *Summary, scans []gazette.Scan) {
	for _, scan := range scans {
		s.Documents++
		switch {
		case scan.Skipped:
			s.Skipped++
		case scan.Fetched:
			s.Scanned++
		default:
			s.Failed++
		}
	}
}

func (c *Controller) notify(ctx context.Context, logger *zap.Logger, runID string, findings []gazette.Finding, s *Summary) {
	if c.notifier == nil {
		logger.Warn("no notifier configured; findings are only logged")
		return
	}
	msg, err := c.renderer.Render(report.Aggregate(runID, c.clock.Now(), findings))
	if err != nil {
		s.NotifyErr = err
		logger.Error("render report failed", zap.Error(err))
		return
	}
	if err := c.notifier.Notify(ctx, msg); err != nil {
		s.NotifyErr = err
		logger.Error("notification failed", zap.Error(err))
		return
	}
	s.Notified = true
}

// toRecord lists the locations the record policy commits, in scan order.
func (c *Controller) toRecord(scans []gazette.Scan) []string {
	var out []string
	for _, scan := range scans {
		if scan.Skipped || !scan.Fetched {
			continue
		}
		if c.opts.RecordPolicy == gazette.RecordMatched && len(scan.Findings) == 0 {
			continue
		}
		out = append(out, scan.Document.Location)
	}
	return out
}
