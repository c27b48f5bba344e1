package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/metrics"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one monitoring pass",
		Long: `Checks the extra editions and today's edition, notifies on new findings
and records the processed documents in history.`,
		Args: cobra.NoArgs,
		RunE: runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl, err := appInstance.Controller(ctx)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	summary, runErr := ctrl.Run(ctx)

	m := appInstance.Config().Metrics
	if err := metrics.Push(ctx, m.PushgatewayURL, m.Job); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d document(s), %d scanned, %d skipped, %d failed, %d finding(s), %d recorded\n",
		summary.RunID, summary.Documents, summary.Scanned, summary.Skipped, summary.Failed,
		summary.Findings, len(summary.Recorded))
	return nil
}
