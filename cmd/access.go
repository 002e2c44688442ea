// ABOUTME: Access command for the ndactl CLI
// ABOUTME: Signs in with MFA, prints the session identity and checks permissions and roles

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jschulte/usmax-nda-sub000/internal/appstate"
	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"github.com/jschulte/usmax-nda-sub000/internal/config"
	"github.com/jschulte/usmax-nda-sub000/internal/permissions"
	"github.com/jschulte/usmax-nda-sub000/internal/session"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/mfa"
	"github.com/spf13/cobra"
)

// accessInput holds the access command's flag values
type accessInput struct {
	email       string
	password    string
	code        string
	permissions []string
	roles       []string
}

var accessFlags accessInput

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Sign in and check permissions",
	Long: `Sign in to the auth service (credentials, then MFA), print the session
identity and verify the user holds the requested permissions and roles.
Missing credentials are prompted for when stdin is a terminal. The session
is always logged out before exit.

Exit codes:
  0 - Signed in and all checks passed
  1 - One or more permission or role checks failed
  2 - Error (authentication failure, lockout, connectivity, missing input)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runAccess(ctx, os.Stdout, accessFlags, terminalPrompter())
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(accessCmd)
	accessCmd.Flags().StringVar(&accessFlags.email, "email", "", "Account email")
	accessCmd.Flags().StringVar(&accessFlags.password, "password", "", "Account password (prompted when omitted)")
	accessCmd.Flags().StringVar(&accessFlags.code, "code", "", "6-digit MFA code (prompted when omitted)")
	accessCmd.Flags().StringSliceVar(&accessFlags.permissions, "permission", nil, "Permission the user must hold (repeatable)")
	accessCmd.Flags().StringSliceVar(&accessFlags.roles, "role", nil, "Role the user must hold (repeatable)")
}

// accessCheck is the result of one --permission or --role check
type accessCheck struct {
	kind   string
	name   string
	passed bool
}

// runAccess signs in, evaluates checks and returns the exit code.
// p may be nil, in which case missing values are an error.
func runAccess(ctx context.Context, w io.Writer, in accessInput, p prompter) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	initStderrLogger(cfg)

	if (in.email == "" || in.password == "") && p != nil {
		if err := p.Credentials(&in.email, &in.password); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}
	if in.email == "" || in.password == "" {
		fmt.Fprintln(w, "Error: --email and --password are required")
		return 2
	}

	store := newStore(cfg, client.New(cfg.AuthURL), appstate.New())
	defer store.Close()
	defer store.Logout(context.Background())

	challenge, err := store.Login(ctx, strings.TrimSpace(in.email), in.password)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if in.code == "" && p != nil {
		if err := p.Code(in.email, &in.code); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	}
	code := mfa.SanitizeCode(in.code)
	if len(code) != mfa.CodeLength {
		fmt.Fprintf(w, "Error: --code must be %d digits\n", mfa.CodeLength)
		return 2
	}

	if err := store.VerifyMFA(ctx, challenge.Session, code); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		var mfaErr *session.MFAError
		if errors.As(err, &mfaErr) && mfaErr.AttemptsRemaining != nil {
			fmt.Fprintf(w, "Attempts remaining: %d\n", *mfaErr.AttemptsRemaining)
		}
		return 2
	}

	snap := store.Snapshot()
	results := performAccessChecks(permissions.New(snap), in.permissions, in.roles)

	if IsJSONOutput() {
		fmt.Fprintln(w, formatAccessJSON(snap, results))
	} else {
		fmt.Fprintln(w, formatAccessHuman(snap, results))
	}

	if _, failed := countAccessResults(results); failed > 0 {
		return 1
	}
	return 0
}

// newStore builds the session store with the configured refresh timing
func newStore(cfg *config.Config, api session.API, state *appstate.State) *session.Store {
	return session.New(api, state,
		session.WithRefreshLead(cfg.RefreshLead),
		session.WithRefreshMaxDelay(cfg.RefreshMaxDelay),
	)
}

// performAccessChecks evaluates every requested permission and role
func performAccessChecks(e *permissions.Evaluator, perms, roles []string) []accessCheck {
	var results []accessCheck
	for _, p := range perms {
		results = append(results, accessCheck{kind: "permission", name: p, passed: e.HasPermission(p)})
	}
	for _, r := range roles {
		results = append(results, accessCheck{kind: "role", name: r, passed: e.HasRole(r)})
	}
	return results
}

// countAccessResults returns the count of passed and failed checks
func countAccessResults(results []accessCheck) (passed, failed int) {
	for _, r := range results {
		if r.passed {
			passed++
		} else {
			failed++
		}
	}
	return
}

// formatAccessHuman formats the session and check results for human readability
func formatAccessHuman(snap session.Snapshot, results []accessCheck) string {
	var sb strings.Builder
	u := snap.User

	fmt.Fprintf(&sb, "User:        %s (%s)\n", u.Email, u.ID)
	fmt.Fprintf(&sb, "Roles:       %s\n", joinOrNone(u.Roles))
	fmt.Fprintf(&sb, "Permissions: %s\n", joinOrNone(u.Permissions))
	fmt.Fprintf(&sb, "Expires:     %s", snap.ExpiresAt.UTC().Format(time.RFC3339))

	if len(results) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\n")
	for _, r := range results {
		symbol := "✓"
		if !r.passed {
			symbol = "✗"
		}
		fmt.Fprintf(&sb, "%s %s %s\n", symbol, r.kind, r.name)
	}

	passed, failed := countAccessResults(results)
	if failed > 0 {
		fmt.Fprintf(&sb, "\nFAILED: %d check(s) not granted", failed)
	} else {
		fmt.Fprintf(&sb, "\nPASSED: All %d check(s) granted", passed)
	}
	return sb.String()
}

// formatAccessJSON formats the session and check results as JSON
func formatAccessJSON(snap session.Snapshot, results []accessCheck) string {
	_, failed := countAccessResults(results)

	checks := make([]map[string]interface{}, len(results))
	for i, r := range results {
		checks[i] = map[string]interface{}{
			"type":   r.kind,
			"name":   r.name,
			"passed": r.passed,
		}
	}

	status := "passed"
	if failed > 0 {
		status = "failed"
	}

	u := snap.User
	output := map[string]interface{}{
		"status": status,
		"user": map[string]interface{}{
			"id":          u.ID,
			"email":       u.Email,
			"roles":       nonEmpty(u.Roles),
			"permissions": nonEmpty(u.Permissions),
		},
		"expires_at": snap.ExpiresAt.UnixMilli(),
		"checks":     checks,
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

func nonEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
