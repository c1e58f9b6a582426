package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/allocator"
	"github.com/headline-goat/abengine/internal/experiment"
)

var convertWeight float64

var assignCmd = &cobra.Command{
	Use:   "assign <id>",
	Short: "Pick an arm for a new visitor",
	Long: `Pick an arm using the experiment's traffic split. Paused arms are
skipped. The visit is not recorded; follow up with 'abengine visit'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *experiment.Manager) error {
			exp, err := m.GetExperiment(ctx, args[0])
			if err != nil {
				return err
			}
			id := allocator.Assign(exp)
			arm, _ := exp.Arm(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, arm.Value)
			return nil
		})
	},
}

var visitCmd = &cobra.Command{
	Use:   "visit <id> <variant>",
	Short: "Record a visit to an arm",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *experiment.Manager) error {
			if err := m.RecordVisit(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to record visit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded visit to %s.\n", args[1])
			return nil
		})
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <id> <variant>",
	Short: "Record a conversion and run the significance test",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *experiment.Manager) error {
			result, err := m.RecordConversion(ctx, args[0], args[1], convertWeight)
			if err != nil {
				return fmt.Errorf("failed to record conversion: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded conversion on %s.\n", args[1])
			if result.IsSignificant {
				fmt.Fprintf(out, "Significant: \"%s\" leads (p=%.3f). Losing arms were paused.\n", result.WinnerID, result.PValue)
			} else {
				fmt.Fprintf(out, "Not yet significant (p=%.3f).\n", result.PValue)
			}
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *experiment.Manager) error {
			if err := m.PauseExperiment(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to pause experiment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paused experiment %s.\n", args[0])
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *experiment.Manager) error {
			if err := m.ResumeExperiment(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to resume experiment: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed experiment %s.\n", args[0])
			return nil
		})
	},
}

func init() {
	convertCmd.Flags().Float64VarP(&convertWeight, "weight", "w", 0, "conversion value recorded in the audit log (default 1)")

	rootCmd.AddCommand(assignCmd, visitCmd, convertCmd, pauseCmd, resumeCmd)
}
