// ABOUTME: MFA code screen for the second login step
// ABOUTME: Digits-only 6-character input with attempts-remaining and lockout display

package mfa

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
)

// CodeLength is the number of digits in an MFA code
const CodeLength = 6

// SubmitMsg is sent when a complete code is submitted
type SubmitMsg struct {
	Session string
	Code    string
}

// BackMsg is sent when the user abandons the challenge
type BackMsg struct{}

// Model is the MFA code form. It holds the challenge session token only in
// memory for the lifetime of the screen.
type Model struct {
	session      string
	email        string
	input        textinput.Model
	err          string
	attemptsLeft *int
	submitting   bool
}

// New creates the form for a challenge issued to email
func New(session, email string) *Model {
	ti := textinput.New()
	ti.Placeholder = "000000"
	ti.Width = CodeLength + 1
	ti.Focus()

	return &Model{session: session, email: email, input: ti}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "esc":
		return m, func() tea.Msg { return BackMsg{} }
	case "enter":
		return m, m.submit()
	}

	if m.Locked() || m.submitting {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Typed or pasted, keep only the first six digits
	if clean := SanitizeCode(m.input.Value()); clean != m.input.Value() {
		m.input.SetValue(clean)
		m.input.CursorEnd()
	}
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	if !m.CanSubmit() {
		return nil
	}
	m.err = ""
	m.submitting = true
	session, code := m.session, m.input.Value()
	return func() tea.Msg {
		return SubmitMsg{Session: session, Code: code}
	}
}

// SanitizeCode strips non-digits and truncates to CodeLength
func SanitizeCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == CodeLength {
				break
			}
		}
	}
	return b.String()
}

// Code returns the current input
func (m *Model) Code() string {
	return m.input.Value()
}

// Email returns the address the challenge was issued to
func (m *Model) Email() string {
	return m.email
}

// CanSubmit is true at exactly CodeLength digits while not locked
func (m *Model) CanSubmit() bool {
	return !m.submitting && !m.Locked() && len(m.input.Value()) == CodeLength
}

// Locked reports that the server signalled zero attempts remaining
func (m *Model) Locked() bool {
	return m.attemptsLeft != nil && *m.attemptsLeft == 0
}

// AttemptsRemaining returns the last count reported by the server, if any
func (m *Model) AttemptsRemaining() (int, bool) {
	if m.attemptsLeft == nil {
		return 0, false
	}
	return *m.attemptsLeft, true
}

// Error returns the inline error
func (m *Model) Error() string {
	return m.err
}

// SetFailure shows a rejected attempt, clears the code and refocuses the
// input. A nil attemptsRemaining keeps the previous count.
func (m *Model) SetFailure(msg string, attemptsRemaining *int) tea.Cmd {
	m.err = msg
	m.submitting = false
	if attemptsRemaining != nil {
		n := *attemptsRemaining
		m.attemptsLeft = &n
	}
	m.input.SetValue("")
	if m.Locked() {
		m.input.Blur()
		return nil
	}
	return m.input.Focus()
}

// View implements tea.Model
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(styles.Title.Render(icons.Key.String() + " Verification code"))
	sb.WriteString("\n")
	sb.WriteString(styles.Subtitle.Render(fmt.Sprintf("Enter the 6-digit code from your authenticator app for %s", m.email)))
	sb.WriteString("\n")

	sb.WriteString(m.input.View())
	sb.WriteString("\n\n")

	label := "Verify"
	if m.submitting {
		label = "Verifying..."
	}
	sb.WriteString(styles.RenderButton(label, true, m.CanSubmit()))

	if m.err != "" {
		sb.WriteString("\n\n")
		sb.WriteString(styles.Error.Render(icons.Critical.String() + " " + m.err))
	}
	if n, ok := m.AttemptsRemaining(); ok {
		sb.WriteString("\n")
		if n == 0 {
			sb.WriteString(styles.StatusCritical.Render("Account locked. Try again later."))
		} else {
			sb.WriteString(styles.StatusWarning.Render(fmt.Sprintf("%d attempt(s) remaining", n)))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(styles.Help.Render("enter verify • esc back to sign in • ctrl+c quit"))
	return sb.String()
}
