// ABOUTME: Health command for the ndactl CLI
// ABOUTME: Checks auth service connectivity and status

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check auth service connectivity",
	Long: `Check connectivity to the NDA portal auth service and report its status.

Exit codes:
  0 - Service reachable and healthy
  2 - Error (connectivity, invalid configuration, unhealthy response)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runHealth(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// runHealth executes the health check and returns exit code
func runHealth(ctx context.Context, w io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	initStderrLogger(cfg)

	c := client.New(cfg.AuthURL)
	resp, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatHealthJSON(cfg.AuthURL, resp))
	} else {
		fmt.Fprintln(w, formatHealthHuman(cfg.AuthURL, resp))
	}

	if resp.Status != "ok" {
		return 2
	}
	return 0
}

// formatHealthHuman formats health response for human readability
func formatHealthHuman(url string, resp *client.HealthResponse) string {
	return fmt.Sprintf(`Auth service: %s
Status:       %s`, url, resp.Status)
}

// formatHealthJSON formats health response as JSON
func formatHealthJSON(url string, resp *client.HealthResponse) string {
	output := map[string]interface{}{
		"auth_service": url,
		"status":       resp.Status,
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
