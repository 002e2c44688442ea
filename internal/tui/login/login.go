// ABOUTME: Credentials screen for the first login step
// ABOUTME: Validates email shape and password length locally before submitting

package login

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
)

// MinPasswordLength gates the submit button; the server re-validates
const MinPasswordLength = 12

const (
	fieldEmail = iota
	fieldPassword
	fieldCount
)

// SubmitMsg is sent when the user submits valid-looking credentials
type SubmitMsg struct {
	Email    string
	Password string
}

// Model is the credentials form
type Model struct {
	email      textinput.Model
	password   textinput.Model
	focus      int
	err        string
	notice     string
	submitting bool
}

// New creates an empty credentials form with the email field focused
func New() *Model {
	email := textinput.New()
	email.Placeholder = "name@usmax.com"
	email.CharLimit = 254
	email.Width = 40
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 40

	return &Model{email: email, password: password}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.updateFocused(msg)
	}
	if m.submitting {
		return m, nil
	}

	switch key.String() {
	case "tab", "down":
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		if m.focus == fieldEmail {
			m.setFocus(fieldPassword)
			return m, nil
		}
		return m, m.submit()
	}

	return m, m.updateFocused(msg)
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == fieldEmail {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *Model) setFocus(field int) {
	m.focus = field
	if field == fieldEmail {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.password.Focus()
		m.email.Blur()
	}
}

// submit clears any stale error before handing off the attempt
func (m *Model) submit() tea.Cmd {
	if !m.CanSubmit() {
		return nil
	}
	m.err = ""
	m.notice = ""
	m.submitting = true
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()
	return func() tea.Msg {
		return SubmitMsg{Email: email, Password: password}
	}
}

// CanSubmit reports whether the form passes local validation
func (m *Model) CanSubmit() bool {
	return !m.submitting &&
		ValidEmail(m.email.Value()) &&
		utf8.RuneCountInString(m.password.Value()) >= MinPasswordLength
}

// SetError shows a failed attempt and re-enables the form
func (m *Model) SetError(msg string) {
	m.err = msg
	m.submitting = false
	m.password.SetValue("")
	m.setFocus(fieldPassword)
}

// SetNotice shows an informational line, e.g. after a forced logout
func (m *Model) SetNotice(msg string) {
	m.notice = msg
}

// Error returns the inline error
func (m *Model) Error() string {
	return m.err
}

// Notice returns the informational line
func (m *Model) Notice() string {
	return m.notice
}

// Submitting reports whether an attempt is in flight
func (m *Model) Submitting() bool {
	return m.submitting
}

// ValidEmail is a syntactic check only: one @, a non-empty local part and a
// dotted domain, no whitespace
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || strings.Count(s, "@") != 1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// View implements tea.Model
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(styles.Title.Render(icons.Lock.String() + " Sign in"))
	sb.WriteString("\n")

	if m.notice != "" {
		sb.WriteString(styles.StatusWarning.Render(m.notice))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.label("Email", fieldEmail))
	sb.WriteString("\n")
	sb.WriteString(m.email.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.label("Password", fieldPassword))
	sb.WriteString("\n")
	sb.WriteString(m.password.View())
	sb.WriteString("\n\n")

	label := "Continue"
	if m.submitting {
		label = "Signing in..."
	}
	sb.WriteString(styles.RenderButton(label, m.focus == fieldPassword, m.CanSubmit()))

	if m.err != "" {
		sb.WriteString("\n\n")
		sb.WriteString(styles.Error.Render(icons.Critical.String() + " " + m.err))
	}

	sb.WriteString("\n")
	sb.WriteString(styles.Help.Render("tab switch field • enter continue • ctrl+c quit"))
	return sb.String()
}

func (m *Model) label(text string, field int) string {
	if m.focus == field {
		return styles.FocusedLabel.Render(text)
	}
	return styles.Label.Render(text)
}
