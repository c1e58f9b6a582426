package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/config"
	"github.com/headline-goat/abengine/internal/experiment"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants    string
		control     string
		contentType string
		split       string
		file        string
		confidence  float64
		minSample   int
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new experiment",
		Long: `Create a running experiment with a control and one or more variants.

Variants get ids variant_0, variant_1, ... in the order given; the control is
always "control". Without --variants or --file you are prompted for them.

Examples:
  abengine create hero --control "Ship Faster" --variants "Build Better,Move Quicker"
  abengine create cta --variants "Try Free" --split "control=80,variant_0=20"
  abengine create --file experiments/hero.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expCfg experiment.CreateConfig
			if file != "" {
				loaded, err := config.LoadExperiment(file)
				if err != nil {
					return err
				}
				expCfg = loaded
			} else {
				if variants == "" {
					entered, err := promptVariants()
					if err != nil {
						return err
					}
					variants = entered
				}
				expCfg = experiment.CreateConfig{
					ContentType:     contentType,
					ConfidenceLevel: confidence,
					MinSampleSize:   minSample,
					Control:         experiment.VariantConfig{Name: control, Value: control},
				}
				for _, v := range strings.Split(variants, ",") {
					if v = strings.TrimSpace(v); v != "" {
						expCfg.Variants = append(expCfg.Variants, experiment.VariantConfig{Name: v, Value: v})
					}
				}
			}

			if len(args) == 1 {
				expCfg.Name = args[0]
			}
			if split != "" {
				parsed, err := parseSplit(split)
				if err != nil {
					return err
				}
				expCfg.TrafficSplit = parsed
			}

			return withManager(func(ctx context.Context, m *experiment.Manager) error {
				exp, err := m.CreateExperiment(ctx, expCfg)
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created experiment '%s' (%s) with %d arms:\n", exp.Name, exp.ID, len(exp.Arms()))
				for _, arm := range exp.Arms() {
					fmt.Fprintf(out, "  %s: %s\n", arm.ID, arm.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variant names")
	cmd.Flags().StringVar(&control, "control", "", "control name (default \"Control\")")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type tag, e.g. headline")
	cmd.Flags().StringVar(&split, "split", "", "traffic split as id=percent pairs, e.g. control=50,variant_0=50")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the experiment definition from a .yaml or .json file")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "confidence level (default 0.95)")
	cmd.Flags().IntVar(&minSample, "min-sample", 0, "minimum visitors per arm before testing (default 100)")

	return cmd
}

func promptVariants() (string, error) {
	prompt := promptui.Prompt{
		Label: "Variants (comma-separated)",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("at least one variant is required")
			}
			return nil
		},
	}

	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return "", fmt.Errorf("cancelled")
		}
		return "", err
	}
	return result, nil
}

// parseSplit reads "id=percent" pairs separated by commas.
func parseSplit(s string) (map[string]float64, error) {
	split := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		id, pct, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid split %q: expected id=percent", pair)
		}
		value, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid split percentage for %s: %w", id, err)
		}
		split[id] = value
	}
	return split, nil
}
