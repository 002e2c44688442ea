// ABOUTME: TUI command for the ndactl CLI
// ABOUTME: Builds the client, session store and UI state, then runs the terminal UI

package cmd

import (
	"fmt"

	"github.com/jschulte/usmax-nda-sub000/internal/appstate"
	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"github.com/jschulte/usmax-nda-sub000/internal/logger"
	"github.com/jschulte/usmax-nda-sub000/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the interactive terminal UI",
	Long: `Run the NDA portal terminal UI: sign in with email, password and MFA code,
then work in a shell that keeps the session alive and warns before it expires.

Logs are written to debug.log in the configured log directory so they do
not disturb the display.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	closeLog, err := logger.InitFile(cfg.LogDir, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()

	state := appstate.New()
	store := newStore(cfg, client.New(cfg.AuthURL), state)
	defer store.Close()

	return tui.Run(store, state, tui.WithWarningWindow(cfg.WarningWindow))
}
