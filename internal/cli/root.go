package cli

import (
	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/config"
)

var (
	cfg *config.Config

	dbPath    string
	storeKind string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "abengine",
	Short: "abengine - an A/B experiment engine with automatic loser demotion",
	Long: `abengine records visits and conversions for competing content variants,
tests significance on every conversion and pauses losing variants once a
winner is clear.

Configuration comes from ABENGINE_* environment variables; flags override them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $ABENGINE_DB_PATH or ./abengine.db)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "store backend: sqlite, badger or memory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		loaded.DBPath = dbPath
	}
	if flags.Changed("store") {
		loaded.Store = storeKind
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}

	if err := loaded.ConfigureLogging(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}
