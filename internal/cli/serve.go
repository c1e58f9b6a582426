package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/server"
	"github.com/headline-goat/abengine/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the abengine HTTP server.

The server provides:
  - JSON API for experiments, visits and conversions
  - Prometheus metrics at /metrics
  - Health check endpoint

Example:
  abengine serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default $ABENGINE_PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.Store, cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if !cmd.Flags().Changed("port") {
		port = cfg.Port
	}

	srv := server.New(experiment.NewManager(s, cfg.ManagerOptions()), server.Options{
		Port:      port,
		Token:     cfg.AdminToken,
		TokenFile: getTokenFilePath(),
	})
	return srv.Start()
}

// getTokenFilePath returns the path to the token file, stored alongside the database.
func getTokenFilePath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(cfg.DBPath)), ".abengine-token")
}
