// ABOUTME: Status badge widgets for quick visual status indication
// ABOUTME: Renders role badges and allowed/denied/pending permission markers

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jschulte/usmax-nda-sub000/internal/permissions"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/icons"
)

// StatusLevel represents the severity of a status
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusInfo
	StatusNeutral
)

// Badge colors
var (
	BadgeOKBg      = lipgloss.Color("#10B981")
	BadgeOKFg      = lipgloss.Color("#FFFFFF")
	BadgeWarnBg    = lipgloss.Color("#F59E0B")
	BadgeWarnFg    = lipgloss.Color("#000000")
	BadgeCritBg    = lipgloss.Color("#EF4444")
	BadgeCritFg    = lipgloss.Color("#FFFFFF")
	BadgeInfoBg    = lipgloss.Color("#3B82F6")
	BadgeInfoFg    = lipgloss.Color("#FFFFFF")
	BadgeNeutralBg = lipgloss.Color("#6B7280")
	BadgeNeutralFg = lipgloss.Color("#FFFFFF")
)

func levelColors(level StatusLevel) (bg, fg lipgloss.Color) {
	switch level {
	case StatusOK:
		return BadgeOKBg, BadgeOKFg
	case StatusWarning:
		return BadgeWarnBg, BadgeWarnFg
	case StatusCritical:
		return BadgeCritBg, BadgeCritFg
	case StatusInfo:
		return BadgeInfoBg, BadgeInfoFg
	default:
		return BadgeNeutralBg, BadgeNeutralFg
	}
}

// Badge renders a colored status badge
func Badge(text string, level StatusLevel) string {
	bg, fg := levelColors(level)

	style := lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true)

	return style.Render(text)
}

// RoleBadges renders one badge per role; Admin is highlighted
func RoleBadges(roles []string) string {
	if len(roles) == 0 {
		return Badge("no roles", StatusNeutral)
	}
	badges := make([]string, 0, len(roles))
	for _, r := range roles {
		level := StatusInfo
		if r == permissions.RoleAdmin {
			level = StatusWarning
		}
		badges = append(badges, Badge(r, level))
	}
	return strings.Join(badges, " ")
}

// DecisionLevel maps a permission decision to a status level
func DecisionLevel(d permissions.Decision) StatusLevel {
	switch d {
	case permissions.Allowed:
		return StatusOK
	case permissions.Pending:
		return StatusNeutral
	default:
		return StatusCritical
	}
}

// StatusIcon returns the appropriate icon for a status level
func StatusIcon(level StatusLevel) string {
	switch level {
	case StatusOK:
		return lipgloss.NewStyle().Foreground(BadgeOKBg).Render(icons.CheckOK.String())
	case StatusWarning:
		return lipgloss.NewStyle().Foreground(BadgeWarnBg).Render(icons.Warning.String())
	case StatusCritical:
		return lipgloss.NewStyle().Foreground(BadgeCritBg).Render(icons.Critical.String())
	case StatusInfo:
		return lipgloss.NewStyle().Foreground(BadgeInfoBg).Render(icons.Info.String())
	default:
		return lipgloss.NewStyle().Foreground(BadgeNeutralBg).Render(icons.Pending.String())
	}
}

// StatusText returns styled status text with icon
func StatusText(text string, level StatusLevel) string {
	bg, _ := levelColors(level)
	textStyle := lipgloss.NewStyle().Foreground(bg)
	return fmt.Sprintf("%s %s", StatusIcon(level), textStyle.Render(text))
}

// GatedAction renders an action label with its permission decision.
// Pending renders neutrally so a loading session never reads as denied.
func GatedAction(label string, d permissions.Decision) string {
	level := DecisionLevel(d)
	if d == permissions.Denied {
		return StatusText(label+" (no access)", level)
	}
	return StatusText(label, level)
}
