// ABOUTME: Authenticated application shell shown after sign-in
// ABOUTME: Renders identity, permission-gated actions, UI state and session time left

package shell

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jschulte/usmax-nda-sub000/internal/appstate"
	"github.com/jschulte/usmax-nda-sub000/internal/permissions"
	"github.com/jschulte/usmax-nda-sub000/internal/session"
	"github.com/jschulte/usmax-nda-sub000/internal/sessionclock"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/widgets"
	"k8s.io/utils/clock"
)

// ExtendMsg asks the owner to refresh the session
type ExtendMsg struct{}

// LogoutMsg asks the owner to log out
type LogoutMsg struct{}

// Action is a portal feature gated by the current user's permissions
type Action struct {
	ID      string
	Label   string
	Key     string
	Allowed func(*permissions.Evaluator) bool
}

func requires(p string) func(*permissions.Evaluator) bool {
	return func(e *permissions.Evaluator) bool { return e.HasPermission(p) }
}

// Actions shown in the shell, in display order
var Actions = []Action{
	{ID: "view", Label: "View NDAs", Key: "1", Allowed: requires(permissions.NDAView)},
	{ID: "create", Label: "Create NDA", Key: "2", Allowed: requires(permissions.NDACreate)},
	{ID: "approve", Label: "Approve NDA", Key: "3", Allowed: requires(permissions.NDAApprove)},
	{ID: "templates", Label: "Manage Templates", Key: "4", Allowed: requires(permissions.TemplatesManage)},
	{ID: "admin", Label: "Administration", Key: "5", Allowed: func(e *permissions.Evaluator) bool {
		return e.IsAdmin() && e.HasAllPermissions([]string{permissions.UsersManage})
	}},
}

const barWidth = 30

// Model is the shell screen
type Model struct {
	state  *appstate.State
	clock  clock.PassiveClock
	window time.Duration
	memo   permissions.Memo

	snap       session.Snapshot
	lastExpiry time.Time
	total      time.Duration
	status     string
}

// New creates the shell over the process UI state
func New(state *appstate.State, clk clock.PassiveClock, window time.Duration) *Model {
	if window <= 0 {
		window = sessionclock.DefaultWarningWindow
	}
	return &Model{state: state, clock: clk, window: window}
}

// SetSnapshot replaces the session view. A new expiry restarts the bar.
func (m *Model) SetSnapshot(snap session.Snapshot) {
	m.snap = snap
	if !snap.ExpiresAt.Equal(m.lastExpiry) {
		m.lastExpiry = snap.ExpiresAt
		m.total = snap.ExpiresAt.Sub(m.clock.Now())
	}
}

// Evaluator returns the permission evaluator for the current snapshot
func (m *Model) Evaluator() *permissions.Evaluator {
	return m.memo.For(m.snap)
}

// Decision evaluates one action
func (m *Model) Decision(a Action) permissions.Decision {
	e := m.Evaluator()
	return e.Decide(a.Allowed(e))
}

// Status returns the last action feedback line
func (m *Model) Status() string {
	return m.status
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q":
		return m, tea.Quit
	case "e":
		m.status = "Extending session..."
		return m, func() tea.Msg { return ExtendMsg{} }
	case "l":
		return m, func() tea.Msg { return LogoutMsg{} }
	case "s":
		m.state.ToggleSidebar()
		return m, nil
	case "f":
		m.state.CycleFilter()
		return m, nil
	}

	for _, a := range Actions {
		if key.String() == a.Key {
			m.activate(a)
			break
		}
	}
	return m, nil
}

func (m *Model) activate(a Action) {
	switch m.Decision(a) {
	case permissions.Allowed:
		m.state.AddRecent(a.ID)
		m.state.Put("action:"+a.ID, m.clock.Now())
		m.status = a.Label + " opened"
	case permissions.Pending:
		m.status = "Checking permissions..."
	default:
		m.status = "You do not have access to " + a.Label
	}
}

// ExtendResult reports the outcome of a user-requested refresh
func (m *Model) ExtendResult(err error) {
	if err != nil {
		m.status = "Could not extend session: " + err.Error()
		return
	}
	m.status = "Session extended"
}

// Remaining returns time left on the session
func (m *Model) Remaining() time.Duration {
	if m.snap.ExpiresAt.IsZero() {
		return 0
	}
	return m.snap.ExpiresAt.Sub(m.clock.Now())
}

// View implements tea.Model
func (m *Model) View() string {
	main := m.viewMain()
	if !m.state.SidebarOpen() {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		styles.ActivePanel.Render(main),
		styles.Panel.Render(m.viewSidebar()),
	)
}

func (m *Model) viewMain() string {
	var sb strings.Builder

	if u := m.snap.User; u != nil {
		sb.WriteString(styles.Title.Render(icons.User.String() + " " + u.Email))
		sb.WriteString("\n")
		sb.WriteString(widgets.RoleBadges(u.Roles))
		sb.WriteString("\n\n")
	}

	sb.WriteString(styles.Subtitle.Render(icons.Shield.String() + " Actions"))
	sb.WriteString("\n")
	for _, a := range Actions {
		sb.WriteString(styles.KeyStyle.Render(a.Key))
		sb.WriteString(" ")
		sb.WriteString(widgets.GatedAction(a.Label, m.Decision(a)))
		sb.WriteString("\n")
	}

	remaining := m.Remaining()
	sb.WriteString("\n")
	sb.WriteString(styles.Subtitle.Render(icons.Clock.String() + " Session"))
	sb.WriteString("\n")
	sb.WriteString(widgets.SessionBar(remaining, m.total, m.window, barWidth))
	sb.WriteString(" ")
	sb.WriteString(styles.ValueStyle.Render(sessionclock.FormatCountdown(remaining)))
	sb.WriteString(" left")

	if m.status != "" {
		sb.WriteString("\n\n")
		sb.WriteString(styles.StatusOK.Render(m.status))
	}
	return sb.String()
}

func (m *Model) viewSidebar() string {
	var sb strings.Builder
	sb.WriteString(styles.Subtitle.Render(icons.Settings.String() + " View"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Filter: %s\n", styles.ValueStyle.Render(string(m.state.Filter()))))

	recent := m.state.Recent()
	sb.WriteString("\nRecent:\n")
	if len(recent) == 0 {
		sb.WriteString(styles.Label.Render("  none"))
		sb.WriteString("\n")
	}
	for _, id := range recent {
		sb.WriteString("  " + id + "\n")
	}
	return sb.String()
}
