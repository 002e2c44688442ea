// ABOUTME: Process-wide UI state unrelated to identity (filters, sidebar, cached results)
// ABOUTME: Wiped back to startup defaults whenever the user logs out

package appstate

import "sync"

// MaxRecentNDAs is the maximum number of recently viewed NDAs to keep
const MaxRecentNDAs = 5

// Filter is the NDA list filter shown in the shell
type Filter string

const (
	FilterAll      Filter = "all"
	FilterMine     Filter = "mine"
	FilterPending  Filter = "pending"
	FilterExpiring Filter = "expiring"
)

var filterOrder = []Filter{FilterAll, FilterMine, FilterPending, FilterExpiring}

// State holds cached UI state. It is safe for concurrent use.
// Nothing here is persisted: the zero-to-default lifecycle is the process.
type State struct {
	mu          sync.RWMutex
	sidebarOpen bool
	filter      Filter
	recent      []string
	cached      map[string]interface{}
}

// New creates state initialized to startup defaults
func New() *State {
	s := &State{}
	s.ResetToInitial()
	return s
}

// ResetToInitial restores every field to its startup default
func (s *State) ResetToInitial() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sidebarOpen = true
	s.filter = FilterAll
	s.recent = []string{}
	s.cached = make(map[string]interface{})
}

// SidebarOpen reports whether the sidebar is expanded
func (s *State) SidebarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarOpen
}

// ToggleSidebar flips the sidebar and returns the new value
func (s *State) ToggleSidebar() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidebarOpen = !s.sidebarOpen
	return s.sidebarOpen
}

// Filter returns the current NDA list filter
func (s *State) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// CycleFilter advances to the next filter and returns it
func (s *State) CycleFilter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := filterOrder[0]
	for i, f := range filterOrder {
		if f == s.filter {
			next = filterOrder[(i+1)%len(filterOrder)]
			break
		}
	}
	s.filter = next
	return next
}

// AddRecent records an NDA as recently viewed (moves to front if present)
func (s *State) AddRecent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := make([]string, 0, len(s.recent)+1)
	recent = append(recent, id)
	for _, r := range s.recent {
		if r != id {
			recent = append(recent, r)
		}
	}
	if len(recent) > MaxRecentNDAs {
		recent = recent[:MaxRecentNDAs]
	}
	s.recent = recent
}

// Recent returns a copy of the recently viewed NDA IDs, newest first
func (s *State) Recent() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.recent))
	copy(out, s.recent)
	return out
}

// Put caches a fetch result under key
func (s *State) Put(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[key] = value
}

// Get returns a cached fetch result
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cached[key]
	return v, ok
}

// CachedCount returns the number of cached entries
func (s *State) CachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cached)
}
