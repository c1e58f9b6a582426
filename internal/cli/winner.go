package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
)

func init() {
	rootCmd.AddCommand(newWinnerCmd())
}

func newWinnerCmd() *cobra.Command {
	var variantID string

	cmd := &cobra.Command{
		Use:   "winner <id>",
		Short: "Declare the winner of an experiment",
		Long: `Declare a winning arm and close the experiment.

The winner must match the arm the latest significance test reported. After
this no further visits or conversions are accepted and every visitor is
assigned the winner.

Example:
  abengine winner 3f2a... --variant variant_0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *experiment.Manager) error {
				if err := m.SelectWinner(ctx, args[0], variantID); err != nil {
					return fmt.Errorf("failed to select winner: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Declared '%s' the winner of experiment %s.\n", variantID, args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantID, "variant", "v", "", "winning arm id (required)")
	cmd.MarkFlagRequired("variant")

	return cmd
}
