package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show the admin token of the running server",
	Long: `Show the admin token written by 'abengine serve'.

The token authorizes winner selection and deletion over HTTP:
  curl -X DELETE -H "Authorization: Bearer <token>" http://localhost:8080/api/experiments/<id>

Example:
  abengine token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(getTokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: abengine serve")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: abengine serve")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Admin token: %s\n", token)
	fmt.Fprintf(out, "API: http://localhost:%d/api/experiments\n", cfg.Port)
	return nil
}
