// ABOUTME: Glyphs for the portal UI with Nerd Font and plain Unicode variants
// ABOUTME: NDA_NERD_FONTS or the terminal program decides which set renders

package icons

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Mode selects the glyph set
type Mode int

const (
	// Auto detects from NDA_NERD_FONTS, then TERM_PROGRAM and TERM
	Auto Mode = iota
	Nerd
	Plain
)

var (
	mu       sync.RWMutex
	mode     Mode
	detected *bool
)

// terminals known to ship a Nerd Font by default
var nerdTerminals = []string{"wezterm", "kitty", "ghostty", "alacritty", "iterm.app"}

// SetMode forces a glyph set; Auto restores detection
func SetMode(m Mode) {
	mu.Lock()
	defer mu.Unlock()
	mode = m
	detected = nil
}

func nerdEnabled() bool {
	mu.RLock()
	m, d := mode, detected
	mu.RUnlock()

	switch m {
	case Nerd:
		return true
	case Plain:
		return false
	}
	if d != nil {
		return *d
	}

	v := detect()
	mu.Lock()
	detected = &v
	mu.Unlock()
	return v
}

func detect() bool {
	if env := os.Getenv("NDA_NERD_FONTS"); env != "" {
		on, err := strconv.ParseBool(env)
		return err == nil && on
	}
	program := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	term := strings.ToLower(os.Getenv("TERM"))
	for _, t := range nerdTerminals {
		if strings.Contains(program, t) || strings.Contains(term, t) {
			return true
		}
	}
	return false
}

// Icon is one glyph in both sets
type Icon struct {
	Nerd  string
	Plain string
}

func (i Icon) String() string {
	if nerdEnabled() {
		return i.Nerd
	}
	return i.Plain
}

var (
	App      = Icon{"\U000f0219", "◈"} // nf-md-file_document
	User     = Icon{"\uf007", "◉"}     // nf-fa-user
	Lock     = Icon{"\uf023", "⚿"}     // nf-fa-lock
	Key      = Icon{"\uf084", "⚷"}     // nf-fa-key
	Shield   = Icon{"\U000f0483", "⛊"} // nf-md-shield_check
	Clock    = Icon{"\uf017", "◷"}     // nf-fa-clock_o
	Settings = Icon{"\U000f0493", "⚙"} // nf-md-cog

	CheckOK  = Icon{"\uf058", "✓"} // nf-fa-check_circle
	Warning  = Icon{"\uf071", "⚠"} // nf-fa-warning
	Critical = Icon{"\uf057", "✗"} // nf-fa-times_circle
	Info     = Icon{"\uf05a", "ℹ"} // nf-fa-info_circle
	Pending  = Icon{"\uf252", "…"} // nf-fa-hourglass_half
)
