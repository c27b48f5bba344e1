// Package cmd defines the gazette-watch command line.
//
// A run loads the watch-list and history, scrapes the extra-edition index,
// captures the daily edition through a headless browser, scans every new PDF
// page by page, mails one aggregated alert and commits history. The process
// is meant to be started by an external scheduler (cron, Cloud Scheduler,
// GitHub Actions); nothing is retried within a run.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/app"
	"github.com/JakeFAU/gazette-watch/internal/config"
	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/runner"
)

type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the service container. Tests swap in a fake.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	History() gazette.HistoryStore
	Controller(ctx context.Context) (Runner, error)
	Close() error
}

// Runner executes one monitoring pass.
type Runner interface {
	Run(ctx context.Context) (runner.Summary, error)
}

type appAdapter struct{ *app.App }

func (a appAdapter) Controller(ctx context.Context) (Runner, error) {
	return a.App.Controller(ctx)
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, opts app.Options) (App, error) {
	a, err := app.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

// newRootCmd returns the command tree and a cleanup that closes the app, if
// one was built. Cobra skips post-run hooks when a command fails, so cleanup
// runs after Execute instead.
func newRootCmd() (*cobra.Command, func()) {
	var (
		opts        app.Options
		appInstance App
	)
	cmd := &cobra.Command{
		Use:   "gazette-watch",
		Short: "Watches the official gazette for mentions of specific people.",
		Long: `gazette-watch scans new editions of the state official gazette for the
names, registration numbers and tax IDs on a configured watch-list and sends
a single e-mail alert per run. Documents already reported are never scanned
again.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			appInstance = a
			zap.ReplaceGlobals(a.Logger())
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with SMTP credentials; ignored when missing")

	cmd.AddCommand(newRunCmd(), newHistoryCmd())

	cleanup := func() {
		if appInstance == nil {
			return
		}
		if err := appInstance.Close(); err != nil {
			appInstance.Logger().Warn("close services", zap.Error(err))
		}
		appInstance = nil
	}
	return cmd, cleanup
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(context.Background())
	cleanup()
	if err != nil {
		zap.L().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
