package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/report"
)

var resultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show conversion rates, confidence intervals and the latest significance test.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an experiment as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(showCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withManager(func(ctx context.Context, m *experiment.Manager) error {
		rep, err := report.New(m).GetExperimentStats(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		printReport(cmd, rep)
		return nil
	})
}

func printReport(cmd *cobra.Command, rep *report.StatsReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "EXPERIMENT: %s (%s)\n", rep.Name, rep.ExperimentID)
	fmt.Fprintf(out, "STATUS: %s\n", rep.Status)
	fmt.Fprintf(out, "DAYS RUNNING: %d\n", rep.DaysRunning)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "ARM          NAME              STATUS    VISITORS  CONVERSIONS  RATE     95% CI")
	fmt.Fprintln(out, strings.Repeat("─", 86))

	winnerID := ""
	if rep.Results != nil {
		winnerID = rep.Results.WinnerID
	}

	for _, arm := range append([]report.ArmStats{rep.Control}, rep.Variants...) {
		ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", arm.ConfidenceInterval.Lower, arm.ConfidenceInterval.Upper)
		if arm.Visitors == 0 {
			ciStr = "N/A"
		}

		indicator := ""
		if arm.ID == winnerID {
			indicator = " ← WINNER"
		}

		// Truncate name if too long
		name := arm.Name
		if len(name) > 16 {
			name = name[:13] + "..."
		}

		fmt.Fprintf(out, "%-11s  %-16s  %-8s  %-8s  %-11s  %-7s  %s%s\n",
			arm.ID,
			name,
			arm.Status,
			formatNumber(arm.Visitors),
			formatNumber(arm.Conversions),
			formatPercent(arm.ConversionRate),
			ciStr,
			indicator,
		)
	}

	fmt.Fprintln(out)

	switch {
	case rep.Results == nil:
		fmt.Fprintln(out, "Statistical significance: no conversions recorded yet")
	case rep.Results.IsSignificant:
		fmt.Fprintf(out, "Statistical significance: \"%s\" wins (p=%.3f, chi²=%.3f)\n",
			rep.Results.WinnerID, rep.Results.PValue, rep.Results.ChiSquareStatistic)
	default:
		fmt.Fprintf(out, "Statistical significance: not yet significant (p=%.3f)\n", rep.Results.PValue)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	return withManager(func(ctx context.Context, m *experiment.Manager) error {
		exp, err := m.GetExperiment(ctx, args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(exp)
	})
}
