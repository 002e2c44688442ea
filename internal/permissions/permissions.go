// ABOUTME: Permission and role evaluation against the current session snapshot
// ABOUTME: Gates UI actions with set-membership checks and a tri-state decision

package permissions

import (
	"sync"

	"github.com/jschulte/usmax-nda-sub000/internal/session"
)

// RoleAdmin is the role IsAdmin checks for
const RoleAdmin = "Admin"

// Permission codes gating portal actions
const (
	NDAView         = "nda:view"
	NDACreate       = "nda:create"
	NDAApprove      = "nda:approve"
	NDADelete       = "nda:delete"
	TemplatesManage = "admin:manage_templates"
	UsersManage     = "admin:manage_users"
)

// Decision is the outcome of a gate check. Pending means the initial session
// check has not finished and the UI should show neither allowed nor denied.
type Decision int

const (
	Denied Decision = iota
	Allowed
	Pending
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Pending:
		return "pending"
	default:
		return "denied"
	}
}

// Evaluator answers permission and role questions for one snapshot.
// An Evaluator with no user denies everything.
type Evaluator struct {
	permissions map[string]struct{}
	roles       map[string]struct{}
	loading     bool
}

// New builds an evaluator from the store's snapshot
func New(snap session.Snapshot) *Evaluator {
	e := &Evaluator{
		permissions: map[string]struct{}{},
		roles:       map[string]struct{}{},
		loading:     snap.Loading,
	}
	if snap.User != nil {
		for _, p := range snap.User.Permissions {
			e.permissions[p] = struct{}{}
		}
		for _, r := range snap.User.Roles {
			e.roles[r] = struct{}{}
		}
	}
	return e
}

// HasPermission reports whether the user holds p
func (e *Evaluator) HasPermission(p string) bool {
	_, ok := e.permissions[p]
	return ok
}

// HasAnyPermission reports whether the user holds at least one of ps.
// An empty list is false.
func (e *Evaluator) HasAnyPermission(ps []string) bool {
	for _, p := range ps {
		if e.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the user holds every one of ps.
// An empty list is true.
func (e *Evaluator) HasAllPermissions(ps []string) bool {
	for _, p := range ps {
		if !e.HasPermission(p) {
			return false
		}
	}
	return true
}

// HasRole reports whether the user holds role r
func (e *Evaluator) HasRole(r string) bool {
	_, ok := e.roles[r]
	return ok
}

// IsAdmin is HasRole(RoleAdmin)
func (e *Evaluator) IsAdmin() bool {
	return e.HasRole(RoleAdmin)
}

// Loading mirrors the store's initial-check flag
func (e *Evaluator) Loading() bool {
	return e.loading
}

// Decide converts a boolean check into a Decision, yielding Pending while loading
func (e *Evaluator) Decide(allowed bool) Decision {
	switch {
	case e.loading:
		return Pending
	case allowed:
		return Allowed
	default:
		return Denied
	}
}

// Memo caches an Evaluator until the snapshot's user or loading flag changes.
// The store replaces the user pointer on every identity change, so pointer
// equality is enough to detect a new permission set.
type Memo struct {
	mu      sync.Mutex
	user    *session.User
	loading bool
	eval    *Evaluator
}

// For returns the evaluator for snap, rebuilding it only when needed
func (m *Memo) For(snap session.Snapshot) *Evaluator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.eval != nil && m.user == snap.User && m.loading == snap.Loading {
		return m.eval
	}
	m.user = snap.User
	m.loading = snap.Loading
	m.eval = New(snap)
	return m.eval
}
