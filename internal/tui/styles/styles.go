// ABOUTME: Shared lipgloss styles for consistent TUI appearance
// ABOUTME: Defines colors, borders, and text styles used across screens

package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - Core palette
	Primary   = lipgloss.Color("#1D4ED8") // Portal blue
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#F9FAFB") // Light
	Surface   = lipgloss.Color("#374151") // Elevated surface background
	Accent    = lipgloss.Color("#60A5FA") // Lighter blue for highlights
	Info      = lipgloss.Color("#3B82F6") // Blue - informational

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			MarginBottom(1)

	// Status indicators
	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	// Panels
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	ActivePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Modal is the session warning dialog
	Modal = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Warning).
		Padding(1, 3)

	// Buttons
	Button = lipgloss.NewStyle().
		Foreground(Text).
		Background(Surface).
		Padding(0, 2)

	FocusedButton = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Bold(true).
			Padding(0, 2)

	DisabledButton = lipgloss.NewStyle().
			Foreground(Muted).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 2)

	// Form labels
	Label = lipgloss.NewStyle().
		Foreground(Muted)

	FocusedLabel = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// Error text shown inline under forms
	Error = lipgloss.NewStyle().
		Foreground(Danger)

	// Help text
	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	// Key style for keyboard shortcuts
	KeyStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// Value style for emphasized data
	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)
)

// RenderButton picks the button style for the focus/enabled state
func RenderButton(label string, focused, enabled bool) string {
	switch {
	case !enabled:
		return DisabledButton.Render(label)
	case focused:
		return FocusedButton.Render(label)
	default:
		return Button.Render(label)
	}
}
