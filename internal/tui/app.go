// ABOUTME: Root bubbletea model for the portal terminal UI
// ABOUTME: Routes between loading, sign-in, MFA and shell screens and hosts the session warning

package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jschulte/usmax-nda-sub000/internal/appstate"
	"github.com/jschulte/usmax-nda-sub000/internal/session"
	"github.com/jschulte/usmax-nda-sub000/internal/sessionclock"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/login"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/mfa"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/shell"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/warning"
	"k8s.io/utils/clock"
)

// Screen represents the current TUI screen
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenLogin
	ScreenMFA
	ScreenShell
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenMFA:
		return "mfa"
	case ScreenShell:
		return "shell"
	default:
		return "loading"
	}
}

// Layout constants
const minTerminalWidth = 80

const expiredNotice = "Your session has expired. Please sign in again."

// MFAState is the transient payload carried from sign-in to the MFA screen
type MFAState struct {
	Session string
	Email   string
}

// SnapshotMsg carries a store state change into the event loop
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

type authCheckedMsg struct {
	snap session.Snapshot
}

type loginResultMsg struct {
	email     string
	challenge *session.Challenge
	err       error
}

type mfaResultMsg struct {
	snap session.Snapshot
	err  error
}

type refreshResultMsg struct {
	snap session.Snapshot
	err  error
}

type loggedOutMsg struct {
	snap    session.Snapshot
	expired bool
}

// App is the root model for the TUI
type App struct {
	store  *session.Store
	state  *appstate.State
	clock  clock.PassiveClock
	window time.Duration

	screen     Screen
	snap       session.Snapshot
	loggingOut bool
	width      int
	height int

	login   *login.Model
	mfa     *mfa.Model
	shell   *shell.Model
	warning *warning.Model
}

// Option configures an App
type Option func(*App)

// WithClock injects the time source for the countdown and shell
func WithClock(c clock.PassiveClock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithWarningWindow sets how long before expiry the warning opens
func WithWarningWindow(d time.Duration) Option {
	return func(a *App) {
		a.window = d
	}
}

// New creates the TUI over an explicitly constructed store and UI state
func New(store *session.Store, state *appstate.State, opts ...Option) *App {
	a := &App{
		store:  store,
		state:  state,
		clock:  clock.RealClock{},
		window: sessionclock.DefaultWarningWindow,
		screen: ScreenLoading,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.warning = warning.New(a.clock, a.window)
	a.snap = store.Snapshot()
	return a
}

// Screen returns the active screen
func (a *App) Screen() Screen {
	return a.screen
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.checkAuth()
}

// navigate is the only way screens change. payload is the transient state
// for the target screen; the MFA screen needs an *MFAState and redirects to
// sign-in without one.
func (a *App) navigate(screen Screen, payload interface{}) tea.Cmd {
	slog.Debug("Navigate", "from", a.screen, "to", screen)

	switch screen {
	case ScreenLogin:
		a.screen = ScreenLogin
		a.mfa = nil
		a.shell = nil
		a.login = login.New()
		if notice, ok := payload.(string); ok && notice != "" {
			a.login.SetNotice(notice)
		}
		return a.login.Init()

	case ScreenMFA:
		st, ok := payload.(*MFAState)
		if !ok || st == nil || st.Session == "" {
			slog.Debug("MFA screen without challenge, redirecting to sign-in")
			return a.navigate(ScreenLogin, nil)
		}
		a.screen = ScreenMFA
		a.login = nil
		a.mfa = mfa.New(st.Session, st.Email)
		return a.mfa.Init()

	case ScreenShell:
		a.screen = ScreenShell
		a.login = nil
		a.mfa = nil
		a.shell = shell.New(a.state, a.clock, a.window)
		a.shell.SetSnapshot(a.snap)
		return nil

	default:
		a.screen = ScreenLoading
		return nil
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		// The open modal owns every key
		if a.screen == ScreenShell && a.warning.Visible() {
			_, cmd := a.warning.Update(msg)
			return a, cmd
		}
		return a.updateScreen(msg)

	case SnapshotMsg:
		return a, a.applySnapshot(msg.Snapshot)

	case authCheckedMsg:
		cmd := a.applySnapshot(msg.snap)
		if a.snap.IsAuthenticated() {
			return a, tea.Batch(cmd, a.navigate(ScreenShell, nil))
		}
		return a, tea.Batch(cmd, a.navigate(ScreenLogin, nil))

	case login.SubmitMsg:
		return a, a.doLogin(msg.Email, msg.Password)

	case loginResultMsg:
		if a.screen != ScreenLogin || a.login == nil {
			return a, nil
		}
		if msg.err != nil {
			a.login.SetError(msg.err.Error())
			return a, nil
		}
		return a, a.navigate(ScreenMFA, &MFAState{Session: msg.challenge.Session, Email: msg.email})

	case mfa.SubmitMsg:
		return a, a.doVerify(msg.Session, msg.Code)

	case mfa.BackMsg:
		return a, a.navigate(ScreenLogin, nil)

	case mfaResultMsg:
		if a.screen != ScreenMFA || a.mfa == nil {
			return a, nil
		}
		if msg.err != nil {
			var mfaErr *session.MFAError
			var attempts *int
			if errors.As(msg.err, &mfaErr) {
				attempts = mfaErr.AttemptsRemaining
			}
			return a, a.mfa.SetFailure(msg.err.Error(), attempts)
		}
		cmd := a.applySnapshot(msg.snap)
		return a, tea.Batch(cmd, a.navigate(ScreenShell, nil))

	case shell.ExtendMsg, warning.ExtendMsg:
		return a, a.doRefresh()

	case refreshResultMsg:
		cmd := a.applySnapshot(msg.snap)
		switch {
		case msg.err == nil:
			a.warning.ExtendDone()
		case msg.snap.IsAuthenticated():
			a.warning.ExtendFailed("Could not extend session. Check your connection and try again.")
		}
		if a.shell != nil {
			a.shell.ExtendResult(msg.err)
		}
		return a, cmd

	case shell.LogoutMsg:
		return a, a.doLogout(false)

	case warning.LogoutMsg:
		return a, a.doLogout(msg.Expired)

	case loggedOutMsg:
		cmd := a.applySnapshot(msg.snap)
		a.loggingOut = false
		notice := ""
		if msg.expired {
			notice = expiredNotice
		}
		return a, tea.Batch(cmd, a.navigate(ScreenLogin, notice))

	case warning.TickMsg:
		_, cmd := a.warning.Update(msg)
		return a, cmd
	}

	return a.updateScreen(msg)
}

func (a *App) updateScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.screen {
	case ScreenLogin:
		if a.login != nil {
			_, cmd = a.login.Update(msg)
		}
	case ScreenMFA:
		if a.mfa != nil {
			_, cmd = a.mfa.Update(msg)
		}
	case ScreenShell:
		if a.shell != nil {
			_, cmd = a.shell.Update(msg)
		}
	}
	return a, cmd
}

// applySnapshot records store state, re-evaluates the clock and leaves the
// shell when the store dropped the session (forced logout on refresh).
// Snapshots older than the one already applied are dropped.
func (a *App) applySnapshot(snap session.Snapshot) tea.Cmd {
	if snap.Version < a.snap.Version {
		slog.Debug("Dropping stale snapshot", "version", snap.Version, "current", a.snap.Version)
		return nil
	}
	a.snap = snap
	cmd := a.warning.Sync(snap)

	if a.screen == ScreenShell {
		if !snap.IsAuthenticated() {
			// loggedOutMsg navigates once the logout finishes
			if a.loggingOut {
				return cmd
			}
			return tea.Batch(cmd, a.navigate(ScreenLogin, expiredNotice))
		}
		a.shell.SetSnapshot(snap)
	}
	return cmd
}

func (a *App) checkAuth() tea.Cmd {
	return func() tea.Msg {
		a.store.CheckAuth(context.Background())
		return authCheckedMsg{snap: a.store.Snapshot()}
	}
}

func (a *App) doLogin(email, password string) tea.Cmd {
	return func() tea.Msg {
		challenge, err := a.store.Login(context.Background(), email, password)
		return loginResultMsg{email: email, challenge: challenge, err: err}
	}
}

func (a *App) doVerify(sessionToken, code string) tea.Cmd {
	return func() tea.Msg {
		err := a.store.VerifyMFA(context.Background(), sessionToken, code)
		return mfaResultMsg{snap: a.store.Snapshot(), err: err}
	}
}

func (a *App) doRefresh() tea.Cmd {
	return func() tea.Msg {
		err := a.store.RefreshSession(context.Background())
		if err != nil {
			slog.Warn("Session extend failed", "error", err)
		}
		return refreshResultMsg{snap: a.store.Snapshot(), err: err}
	}
}

func (a *App) doLogout(expired bool) tea.Cmd {
	a.loggingOut = true
	return func() tea.Msg {
		a.store.Logout(context.Background())
		return loggedOutMsg{snap: a.store.Snapshot(), expired: expired}
	}
}

// View implements tea.Model
func (a *App) View() string {
	var content string

	switch a.screen {
	case ScreenLogin:
		content = styles.ActivePanel.Render(a.login.View())
	case ScreenMFA:
		content = styles.ActivePanel.Render(a.mfa.View())
	case ScreenShell:
		content = a.shell.View()
		if a.warning.Visible() {
			// Modal replaces the shell so nothing behind it can take focus
			content = lipgloss.Place(lipgloss.Width(content), lipgloss.Height(content),
				lipgloss.Center, lipgloss.Center, a.warning.View())
		}
	default:
		content = styles.Panel.Render(icons.Pending.String() + " Checking session...")
	}

	return a.wrapWithFrame(content)
}

// renderHeader creates the header bar with app branding and context
func (a *App) renderHeader() string {
	// Guard against zero/small width before WindowSizeMsg is received
	width := a.width
	if width < minTerminalWidth {
		width = minTerminalWidth
	}

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftText := " " + icons.App.String() + " " + titleStyle.Render("NDA Portal")

	rightText := ""
	if a.snap.User != nil && a.screen == ScreenShell {
		rightText = contextStyle.Render(a.snap.User.Email) + " "
	}

	leftWidth := lipgloss.Width(leftText)
	rightWidth := lipgloss.Width(rightText)
	fillWidth := width - 4 - leftWidth - rightWidth // -4 for ╭─ and ─╮
	if fillWidth < 0 {
		fillWidth = 0
	}

	return borderStyle.Render("╭─" + leftText + strings.Repeat("─", fillWidth) + rightText + "─╮")
}

// renderFooter creates the footer with keyboard shortcuts
func (a *App) renderFooter() string {
	width := a.width
	if width < minTerminalWidth {
		width = minTerminalWidth
	}

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)

	var shortcuts []string
	switch a.screen {
	case ScreenLogin:
		shortcuts = []string{"Tab Next", "Enter Continue", "^C Quit"}
	case ScreenMFA:
		shortcuts = []string{"Enter Verify", "Esc Back", "^C Quit"}
	case ScreenShell:
		if a.warning.Visible() {
			shortcuts = []string{"Tab Switch", "Enter Choose", "e Extend", "l Logout"}
		} else {
			shortcuts = []string{"1-5 Open", "e Extend", "l Logout", "s Sidebar", "f Filter", "q Quit"}
		}
	}

	var styled []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		styled = append(styled, keyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
	}

	leftText := " " + strings.Join(styled, "  ")
	leftWidth := lipgloss.Width(" " + strings.Join(shortcuts, "  "))
	fillWidth := width - 4 - leftWidth // -4 for ╰─ and ─╯
	if fillWidth < 0 {
		fillWidth = 0
	}

	return borderStyle.Render("╰─" + leftText + strings.Repeat("─", fillWidth) + "─╯")
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}

// Run starts the TUI and relays store changes into the program
func Run(store *session.Store, state *appstate.State, opts ...Option) error {
	app := New(store, state, opts...)

	p := tea.NewProgram(app, tea.WithAltScreen())
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: snap})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
