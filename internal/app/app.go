// Package app builds the long-lived services for one CLI invocation and wires
// them into a run controller.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/clock/system"
	"github.com/JakeFAU/gazette-watch/internal/config"
	"github.com/JakeFAU/gazette-watch/internal/discovery"
	collyfetcher "github.com/JakeFAU/gazette-watch/internal/fetcher/colly"
	"github.com/JakeFAU/gazette-watch/internal/fetcher/headless"
	"github.com/JakeFAU/gazette-watch/internal/fetcher/ratelimit"
	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/hash/sha256"
	"github.com/JakeFAU/gazette-watch/internal/history"
	"github.com/JakeFAU/gazette-watch/internal/id/uuid"
	"github.com/JakeFAU/gazette-watch/internal/logging"
	"github.com/JakeFAU/gazette-watch/internal/notify"
	"github.com/JakeFAU/gazette-watch/internal/notify/email"
	"github.com/JakeFAU/gazette-watch/internal/notify/pubsub"
	"github.com/JakeFAU/gazette-watch/internal/pdftext"
	"github.com/JakeFAU/gazette-watch/internal/processor"
	"github.com/JakeFAU/gazette-watch/internal/report"
	"github.com/JakeFAU/gazette-watch/internal/runner"
	gcsarchive "github.com/JakeFAU/gazette-watch/internal/storage/gcs"
	"github.com/JakeFAU/gazette-watch/internal/storage/local"
)

// Options locate the configuration sources.
type Options struct {
	ConfigPath string
	EnvFile    string
}

// App holds the services shared by every command.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	history *history.Store
	closers []func() error
}

// New loads configuration, builds the logger and opens the history backend.
func New(ctx context.Context, opts Options) (*App, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger builds an App from an already loaded configuration.
func NewWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := history.Open(ctx, cfg.HistoryOptions())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	logger.Info("history backend ready", zap.String("provider", cfg.History.Provider))
	return &App{cfg: cfg, logger: logger, history: store, closers: []func() error{store.Close}}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// History returns the history backend.
func (a *App) History() gazette.HistoryStore { return a.history }

// Controller wires discoverers, processor and notifiers for one run.
func (a *App) Controller(ctx context.Context) (*runner.Controller, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := system.New(loc)

	archive, err := a.archive(ctx)
	if err != nil {
		return nil, err
	}
	var hasher gazette.Hasher
	if archive != nil {
		hasher = sha256.New()
	}

	fetcher := ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.HTTP.UserAgent,
		MaxBodySize: a.cfg.HTTP.MaxBodyBytes,
	}), ratelimit.New(ratelimit.Config{
		RPS:   a.cfg.HTTP.RequestsPerSecond,
		Burst: a.cfg.HTTP.Burst,
	}))
	proc := processor.New(fetcher, pdftext.New(), archive, hasher, processor.Config{
		Watchlist:       a.cfg.Watchlist,
		DocumentTimeout: a.cfg.HTTP.DocumentTimeout,
		ArchivePrefix:   a.cfg.Archive.Prefix,
	}, a.logger.Named("processor"))

	discoverers, err := a.discoverers(fetcher, clk, proc)
	if err != nil {
		return nil, err
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		return nil, err
	}

	return runner.New(
		a.history,
		discoverers,
		report.NewRenderer(a.cfg.Notify.Email.Subject, loc),
		notifier,
		clk,
		uuid.New(),
		runner.Options{
			RecordPolicy:          a.cfg.History.RecordPolicy,
			FailOnDiscoveryOutage: a.cfg.Run.FailOnDiscoveryOutage,
		},
		a.logger.Named("runner"),
	)
}

func (a *App) discoverers(fetcher gazette.Fetcher, clk gazette.Clock, proc discovery.DocumentProcessor) ([]gazette.Discoverer, error) {
	var out []gazette.Discoverer
	if a.cfg.Extra.Enabled {
		extra, err := discovery.NewExtraEditions(discovery.ExtraConfig{
			IndexURL:     a.cfg.Extra.IndexURL,
			Marker:       a.cfg.Extra.Marker,
			Extension:    a.cfg.Extra.Extension,
			IndexTimeout: a.cfg.HTTP.IndexTimeout,
		}, fetcher, proc, a.logger.Named("extra"))
		if err != nil {
			return nil, err
		}
		out = append(out, extra)
	}
	if a.cfg.Daily.Enabled {
		interceptor, err := headless.NewChromedp(headless.Config{
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: a.cfg.Daily.NavigationTimeout,
			CaptureWait:       a.cfg.Daily.CaptureWait,
			ExecPath:          a.cfg.Daily.ChromePath,
			NoSandbox:         a.cfg.Daily.NoSandbox,
		}, a.logger.Named("headless"))
		if err != nil {
			return nil, err
		}
		loc, err := a.cfg.Location()
		if err != nil {
			return nil, err
		}
		daily, err := discovery.NewDailyEdition(discovery.DailyConfig{
			ViewerURLTemplate: a.cfg.Daily.ViewerURL,
			DateLayout:        a.cfg.Daily.DateLayout,
			Location:          loc,
			StorageHost:       a.cfg.Daily.StorageHost,
			Extension:         a.cfg.Daily.Extension,
			TitlePrefix:       a.cfg.Daily.TitlePrefix,
		}, interceptor, clk, proc, a.logger.Named("daily"))
		if err != nil {
			return nil, err
		}
		out = append(out, daily)
	}
	return out, nil
}

func (a *App) archive(ctx context.Context) (gazette.BlobStore, error) {
	switch a.cfg.Archive.Provider {
	case config.ArchiveLocal:
		return local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcsarchive.New(client, gcsarchive.Config{Bucket: a.cfg.Archive.Bucket})
	default:
		return nil, nil
	}
}

func (a *App) notifier(ctx context.Context) (gazette.Notifier, error) {
	e := a.cfg.Notify.Email
	channels := []notify.Channel{{
		Name: "email",
		Notifier: email.New(email.Config{
			Host:     e.Host,
			Port:     e.Port,
			From:     e.From,
			Password: e.Password,
			To:       e.To,
			Timeout:  e.Timeout,
		}),
	}}
	if ps := a.cfg.Notify.PubSub; ps.Enabled() {
		publisher, err := pubsub.New(ctx, ps.ProjectID, ps.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
		channels = append(channels, notify.Channel{Name: "pubsub", Notifier: publisher})
	}
	return notify.NewMulti(a.logger.Named("notify"), channels...), nil
}

// Close releases every service and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
