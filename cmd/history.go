package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect processed documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every recorded document location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			set, err := appInstance.History().Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			for _, loc := range set.Sorted() {
				fmt.Fprintln(cmd.OutOrStdout(), loc)
			}
			return nil
		},
	})
	return cmd
}
