// ABOUTME: Derives remaining session time and warning phase from an absolute expiry
// ABOUTME: Monitor tracks phase transitions and emits a single logout per expiry

package sessionclock

import (
	"fmt"
	"time"
)

// DefaultWarningWindow is how long before expiry the warning modal opens
const DefaultWarningWindow = 5 * time.Minute

// Phase is the session clock state
type Phase int

const (
	// Inactive means there is no user; stale expiry values are ignored
	Inactive Phase = iota
	// Dormant means more than the warning window remains
	Dormant
	// Warning means the session ends within the warning window
	Warning
	// Expired means no time remains
	Expired
)

func (p Phase) String() string {
	switch p {
	case Dormant:
		return "dormant"
	case Warning:
		return "warning"
	case Expired:
		return "expired"
	default:
		return "inactive"
	}
}

// Reading is one evaluation of the clock
type Reading struct {
	Phase     Phase
	Remaining time.Duration
}

// Evaluate computes the phase for a session expiring at expiresAt
func Evaluate(authenticated bool, expiresAt, now time.Time, window time.Duration) Reading {
	if !authenticated || expiresAt.IsZero() {
		return Reading{Phase: Inactive}
	}

	remaining := expiresAt.Sub(now)
	switch {
	case remaining <= 0:
		return Reading{Phase: Expired}
	case remaining <= window:
		return Reading{Phase: Warning, Remaining: remaining}
	default:
		return Reading{Phase: Dormant, Remaining: remaining}
	}
}

// FormatCountdown renders d as MM:SS, truncating partial seconds
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Update is the result of one Monitor step
type Update struct {
	Reading Reading
	// Previous is the phase before this step
	Previous Phase
	// Logout is true the first time a given expiry instant is observed as expired
	Logout bool
}

// Changed reports whether the phase moved
func (u Update) Changed() bool {
	return u.Reading.Phase != u.Previous
}

// Extended reports a Warning -> Dormant transition, i.e. a successful refresh
func (u Update) Extended() bool {
	return u.Previous == Warning && u.Reading.Phase == Dormant
}

// Monitor evaluates the clock repeatedly. It is not safe for concurrent use;
// the owning UI loop calls Step from one goroutine.
type Monitor struct {
	window      time.Duration
	phase       Phase
	loggedOutAt time.Time
}

// NewMonitor creates a monitor; a non-positive window uses DefaultWarningWindow
func NewMonitor(window time.Duration) *Monitor {
	if window <= 0 {
		window = DefaultWarningWindow
	}
	return &Monitor{window: window}
}

// Window returns the warning window
func (m *Monitor) Window() time.Duration {
	return m.window
}

// Phase returns the phase from the last step
func (m *Monitor) Phase() Phase {
	return m.phase
}

// Step evaluates the clock at now
func (m *Monitor) Step(authenticated bool, expiresAt, now time.Time) Update {
	r := Evaluate(authenticated, expiresAt, now, m.window)
	u := Update{Reading: r, Previous: m.phase}
	m.phase = r.Phase

	if r.Phase == Expired && !expiresAt.Equal(m.loggedOutAt) {
		m.loggedOutAt = expiresAt
		u.Logout = true
	}
	return u
}
