// ABOUTME: Session expiry warning modal with a live countdown
// ABOUTME: Owns the 1-second tick, traps focus and cannot be dismissed without a choice

package warning

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jschulte/usmax-nda-sub000/internal/session"
	"github.com/jschulte/usmax-nda-sub000/internal/sessionclock"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
	"k8s.io/utils/clock"
)

// TickInterval is the countdown resolution
const TickInterval = time.Second

const (
	buttonExtend = iota
	buttonLogout
	buttonCount
)

// TickMsg drives the countdown. id ties it to one tick loop.
type TickMsg struct {
	id int
}

// ExtendMsg asks the owner to refresh the session
type ExtendMsg struct{}

// LogoutMsg asks the owner to log out. Expired is set when the clock ran out.
type LogoutMsg struct {
	Expired bool
}

// Model is the warning modal plus the clock that decides when it shows
type Model struct {
	clock   clock.PassiveClock
	monitor *sessionclock.Monitor

	authenticated bool
	expiresAt     time.Time
	reading       sessionclock.Reading

	tickID    int
	ticking   bool
	focus     int
	extending bool
	err       string
}

// New creates a modal using window as the warning threshold
func New(clk clock.PassiveClock, window time.Duration) *Model {
	return &Model{
		clock:   clk,
		monitor: sessionclock.NewMonitor(window),
	}
}

// Sync re-evaluates immediately against a new store snapshot and starts or
// stops the tick loop as needed
func (m *Model) Sync(snap session.Snapshot) tea.Cmd {
	if !snap.ExpiresAt.Equal(m.expiresAt) {
		m.extending = false
	}
	m.authenticated = snap.IsAuthenticated()
	m.expiresAt = snap.ExpiresAt

	cmd := m.step()

	if !m.authenticated || m.reading.Phase == sessionclock.Expired {
		m.stop()
		return cmd
	}
	if !m.ticking {
		m.ticking = true
		m.tickID++
		return tea.Batch(cmd, m.tick())
	}
	return cmd
}

// Init implements tea.Model. The tick loop starts from Sync.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		if msg.id != m.tickID || !m.ticking {
			return m, nil
		}
		cmd := m.step()
		if !m.ticking {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.tick())

	case tea.KeyMsg:
		if !m.Visible() {
			return m, nil
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

// handleKey keeps focus on the two buttons. Escape does nothing.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "right":
		m.focus = (m.focus + 1) % buttonCount
	case "shift+tab", "left":
		m.focus = (m.focus + buttonCount - 1) % buttonCount
	case "e":
		return m.extend()
	case "l":
		return logout(false)
	case "enter", " ":
		if m.focus == buttonExtend {
			return m.extend()
		}
		return logout(false)
	}
	return nil
}

func (m *Model) extend() tea.Cmd {
	if m.extending {
		return nil
	}
	m.extending = true
	m.err = ""
	return func() tea.Msg { return ExtendMsg{} }
}

// ExtendDone re-enables Extend after a refresh that succeeded
func (m *Model) ExtendDone() {
	m.extending = false
	m.err = ""
}

// Extending reports whether an extend request is in flight
func (m *Model) Extending() bool {
	return m.extending
}

// ExtendFailed reports a refresh that made no state change
func (m *Model) ExtendFailed(msg string) {
	m.extending = false
	m.err = msg
}

func (m *Model) step() tea.Cmd {
	u := m.monitor.Step(m.authenticated, m.expiresAt, m.clock.Now())
	m.reading = u.Reading

	if u.Changed() {
		// A fresh modal always opens on Extend
		if u.Reading.Phase == sessionclock.Warning {
			m.focus = buttonExtend
		}
		if u.Reading.Phase != sessionclock.Warning {
			m.extending = false
			m.err = ""
		}
	}
	if u.Logout {
		m.stop()
		return logout(true)
	}
	return nil
}

func (m *Model) stop() {
	if m.ticking {
		m.ticking = false
		m.tickID++
	}
}

func (m *Model) tick() tea.Cmd {
	id := m.tickID
	return tea.Tick(TickInterval, func(time.Time) tea.Msg {
		return TickMsg{id: id}
	})
}

func logout(expired bool) tea.Cmd {
	return func() tea.Msg { return LogoutMsg{Expired: expired} }
}

// Visible reports whether the modal is open
func (m *Model) Visible() bool {
	return m.reading.Phase == sessionclock.Warning
}

// Phase returns the clock phase from the last evaluation
func (m *Model) Phase() sessionclock.Phase {
	return m.reading.Phase
}

// Remaining returns the time left at the last evaluation
func (m *Model) Remaining() time.Duration {
	return m.reading.Remaining
}

// Ticking reports whether the countdown loop is live
func (m *Model) Ticking() bool {
	return m.ticking
}

// Countdown returns the remaining time as MM:SS
func (m *Model) Countdown() string {
	return sessionclock.FormatCountdown(m.reading.Remaining)
}

// View renders the modal, or nothing when closed
func (m *Model) View() string {
	if !m.Visible() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(styles.StatusWarning.Render(icons.Clock.String() + " Your session is about to expire"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("You will be logged out in %s", styles.ValueStyle.Render(m.Countdown())))
	sb.WriteString("\n\n")

	extendLabel := "Extend Session"
	if m.extending {
		extendLabel = "Extending..."
	}
	sb.WriteString(styles.RenderButton(extendLabel, m.focus == buttonExtend, !m.extending))
	sb.WriteString("  ")
	sb.WriteString(styles.RenderButton("Logout Now", m.focus == buttonLogout, true))

	if m.err != "" {
		sb.WriteString("\n\n")
		sb.WriteString(styles.Error.Render(m.err))
	}

	sb.WriteString("\n")
	sb.WriteString(styles.Help.Render("tab switch • enter choose • e extend • l logout"))
	return styles.Modal.Render(sb.String())
}
