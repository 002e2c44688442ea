// ABOUTME: Root command for the ndactl CLI
// ABOUTME: Handles global flags and layered configuration

package cmd

import (
	"os"

	"github.com/jschulte/usmax-nda-sub000/internal/config"
	"github.com/jschulte/usmax-nda-sub000/internal/logger"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	jsonOutput bool
	configPath string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "ndactl",
	Short: "Terminal client for the NDA portal",
	Long: `ndactl signs in to the NDA portal auth service, keeps the session alive
and gates portal actions on the signed-in user's permissions.

Environment Variables:
  NDA_AUTH_URL   Auth service URL (default: http://localhost:8080)
  NDA_CONFIG     YAML configuration file
  LOG_LEVEL      debug, info, warn, error (default: info)
  LOG_FORMAT     text, json (default: text)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Auth service URL (overrides NDA_AUTH_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (overrides NDA_CONFIG)")
}

// loadConfig layers defaults, .env, the config file and environment, then
// applies flags last
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.AuthURL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// initStderrLogger sends logs to stderr so stdout stays machine-readable
func initStderrLogger(cfg *config.Config) {
	logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
