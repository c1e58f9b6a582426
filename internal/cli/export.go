package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/report"
	"github.com/headline-goat/abengine/internal/store"
)

var exportFormat string

var historyCmd = &cobra.Command{
	Use:     "history [id]",
	Aliases: []string{"export"},
	Short:   "Export the conversion audit log",
	Long: `Export conversion events, newest first, in CSV or JSON format.
Without an id every experiment's events are exported.

Examples:
  abengine history 3f2a... --format csv > hero-conversions.csv
  abengine history --format json > conversions.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	experimentID := ""
	if len(args) == 1 {
		experimentID = args[0]
	}

	return withManager(func(ctx context.Context, m *experiment.Manager) error {
		events, err := report.New(m).GetConversionHistory(ctx, experimentID)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(cmd.OutOrStdout(), events)
		}
		return exportJSON(cmd.OutOrStdout(), events)
	})
}

func exportCSV(out io.Writer, events []store.ConversionEvent) error {
	w := csv.NewWriter(out)

	// Write header
	if err := w.Write([]string{"timestamp", "experiment_id", "variant_id", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.Timestamp.Unix(), 10),
			e.ExperimentID,
			e.VariantID,
			strconv.FormatFloat(e.Value, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

type jsonExport struct {
	Events []store.ConversionEvent `json:"events"`
}

func exportJSON(out io.Writer, events []store.ConversionEvent) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonExport{Events: events})
}
