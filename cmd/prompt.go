// ABOUTME: Interactive prompts for missing access credentials
// ABOUTME: Uses huh forms themed with the portal palette when stdin is a terminal

package cmd

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/login"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/mfa"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
	"github.com/mattn/go-isatty"
)

// prompter fills in values the user did not pass as flags
type prompter interface {
	Credentials(email, password *string) error
	Code(email string, code *string) error
}

// terminalPrompter returns a huh prompter when stdin is a terminal, else nil
func terminalPrompter() prompter {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return huhPrompter{}
}

type huhPrompter struct{}

func (huhPrompter) Credentials(email, password *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(func(s string) error {
					if !login.ValidEmail(s) {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		).Title("Sign in to the NDA portal"),
	).WithTheme(promptTheme()).Run()
}

func (huhPrompter) Code(email string, code *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Verification code").
				CharLimit(mfa.CodeLength).
				Value(code).
				Validate(func(s string) error {
					if c := mfa.SanitizeCode(s); c != s || len(c) != mfa.CodeLength {
						return errors.New("enter the 6-digit code from your authenticator app")
					}
					return nil
				}),
		).Title("Verify it's you").Description(email),
	).WithTheme(promptTheme()).Run()
}

// promptTheme matches the terminal UI colors
func promptTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().
		Foreground(styles.Muted).
		MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(styles.Danger).
		SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().
		Foreground(styles.Primary)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().
		Foreground(styles.Primary)
	t.Focused.TextInput.Text = lipgloss.NewStyle().
		Foreground(styles.Text)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(styles.Muted)

	return t
}
