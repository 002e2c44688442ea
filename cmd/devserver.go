// ABOUTME: Devserver command for the ndactl CLI
// ABOUTME: Runs the stand-in auth service until interrupted

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jschulte/usmax-nda-sub000/internal/authstub"
	"github.com/spf13/cobra"
)

var devserverAddr string

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the development auth service",
	Long: `Run a local stand-in for the NDA portal auth service. It implements
login, MFA verification, who-am-I, refresh and logout with cookie sessions,
CSRF protection, MFA lockout, rate limiting and Prometheus metrics.

Environment Variables:
  NDA_DEV_ADDR           Listen address (default: :8080)
  NDA_DEV_USERS_FILE     YAML user list (default: seeded admin and viewer)
  NDA_DEV_MFA_CODE       Accepted MFA code (default: 123456)
  NDA_DEV_SESSION_TTL    Session lifetime (default: 30m)
  NDA_DEV_MFA_ATTEMPTS   MFA attempts per challenge (default: 3)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runDevServer(ctx)
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().StringVar(&devserverAddr, "addr", "", "Listen address (overrides NDA_DEV_ADDR)")
}

func runDevServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initStderrLogger(cfg)

	if devserverAddr != "" {
		cfg.DevServer.Addr = devserverAddr
	}

	srv, err := authstub.New(cfg.DevServer)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.ListenAndServe(ctx)
}
