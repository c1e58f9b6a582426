package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
)

var listTag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Long: `List experiments with their status and totals.

Examples:
  abengine list
  abengine list --tag headline`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listTag, "tag", "t", "", "only list experiments with this content type")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withManager(func(ctx context.Context, m *experiment.Manager) error {
		var (
			experiments []*experiment.Experiment
			err         error
		)
		if listTag != "" {
			experiments, err = m.GetExperimentsByTag(ctx, listTag)
		} else {
			experiments, err = m.ListExperiments(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(experiments) == 0 {
			fmt.Fprintln(out, "No experiments yet.")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Create one with:")
			fmt.Fprintln(out, "  abengine create hero --variants \"Build Better\"")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tARMS\tVISITORS\tCONVERSIONS\tCREATED")
		for _, exp := range experiments {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				exp.ID,
				exp.Name,
				exp.ContentType,
				strings.ToUpper(string(exp.Status)),
				len(exp.Arms()),
				formatNumber(exp.TotalVisitors()),
				formatNumber(exp.TotalConversions()),
				exp.CreatedAt.Format("2006-01-02"),
			)
		}
		return w.Flush()
	})
}
