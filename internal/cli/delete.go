package cli

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an experiment",
	Long: `Delete an experiment. Its conversion history is kept.

Example:
  abengine delete 3f2a... --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	if !deleteYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete experiment %s", id),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if err == promptui.ErrAbort || err == promptui.ErrInterrupt {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			return err
		}
	}

	return withManager(func(ctx context.Context, m *experiment.Manager) error {
		if err := m.DeleteExperiment(ctx, id); err != nil {
			return fmt.Errorf("failed to delete experiment: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment %s.\n", id)
		return nil
	})
}
