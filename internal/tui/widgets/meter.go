// ABOUTME: Session time meter that drains as the session ages
// ABOUTME: Colors the remaining time by how close it is to the warning window

package widgets

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jschulte/usmax-nda-sub000/internal/tui/styles"
)

const (
	cellFull  = "█"
	cellEmpty = "░"
)

// RemainingCells is how many of width cells the remaining time fills,
// rounded down. An unknown total fills nothing.
func RemainingCells(remaining, total time.Duration, width int) int {
	if total <= 0 || remaining <= 0 || width <= 0 {
		return 0
	}
	if remaining >= total {
		return width
	}
	return int(int64(width) * int64(remaining) / int64(total))
}

// RemainingLevel grades the remaining time: OK outside the warning window,
// Warning inside it and Critical in its last fifth
func RemainingLevel(remaining, window time.Duration) StatusLevel {
	switch {
	case remaining <= window/5:
		return StatusCritical
	case remaining <= window:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Meter renders filled cells out of width in one color
func Meter(filled, width int, color lipgloss.Color) string {
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	on := lipgloss.NewStyle().Foreground(color)
	off := lipgloss.NewStyle().Foreground(styles.Surface)
	return "[" + on.Render(strings.Repeat(cellFull, filled)) +
		off.Render(strings.Repeat(cellEmpty, width-filled)) + "]"
}

// SessionBar renders the remaining session time as a meter of width cells
func SessionBar(remaining, total, window time.Duration, width int) string {
	color, _ := levelColors(RemainingLevel(remaining, window))
	return Meter(RemainingCells(remaining, total, width), width, color)
}
