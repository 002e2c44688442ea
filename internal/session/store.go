// ABOUTME: Auth session store: single authority for authentication state
// ABOUTME: Drives login, MFA verification, refresh and logout against the auth service

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"k8s.io/utils/clock"
)

// API is the subset of the auth service client the store calls
type API interface {
	WhoAmI(ctx context.Context) (*client.SessionResponse, error)
	Login(ctx context.Context, email, password string) (*client.LoginChallenge, error)
	VerifyMFA(ctx context.Context, session, code string) (*client.SessionResponse, error)
	Refresh(ctx context.Context, csrfToken string) (*client.RefreshResponse, error)
	Logout(ctx context.Context, csrfToken string) error
}

// Resetter wipes process-wide UI state on logout
type Resetter interface {
	ResetToInitial()
}

// User is the identity snapshot taken at login or refresh.
// A User is never mutated after construction; a new snapshot replaces it.
type User struct {
	ID          string
	Email       string
	Permissions []string
	Roles       []string
}

// Challenge is the MFA challenge returned by a successful credentials step
type Challenge struct {
	ChallengeName string
	Session       string
}

// Snapshot is an immutable view of the store's state
type Snapshot struct {
	User      *User
	ExpiresAt time.Time
	CSRFToken string
	Error     string
	Loading   bool
	// Version increases with every published change; a lower Version is older
	Version uint64
}

// IsAuthenticated reports whether a user is present
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// Option configures a Store
type Option func(*Store)

// WithClock injects the time source used for the refresh timer
func WithClock(c clock.WithDelayedExecution) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithRefreshLead sets how long before expiry the proactive refresh fires
func WithRefreshLead(d time.Duration) Option {
	return func(s *Store) {
		s.refreshLead = d
	}
}

// WithRefreshMaxDelay caps how far out the refresh timer may be armed
func WithRefreshMaxDelay(d time.Duration) Option {
	return func(s *Store) {
		s.refreshMaxDelay = d
	}
}

// Store holds the current identity, permission snapshot, expiry and CSRF token.
// Fields are mutex-guarded but operations are not serialized against each
// other: overlapping calls run concurrently and the first to commit wins.
type Store struct {
	api             API
	reset           Resetter
	clock           clock.WithDelayedExecution
	refreshLead     time.Duration
	refreshMaxDelay time.Duration

	mu           sync.Mutex
	user         *User
	expiresAt    time.Time
	csrfToken    string
	errMsg       string
	loading      bool
	generation   uint64
	version      uint64
	refreshTimer clock.Timer
	subscribers  map[int]func(Snapshot)
	nextSubID    int

	refreshC  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a store and starts its refresh scheduler.
// Call Close to disarm timers when the owning UI goes away.
func New(api API, reset Resetter, opts ...Option) *Store {
	s := &Store{
		api:             api,
		reset:           reset,
		clock:           clock.RealClock{},
		refreshLead:     DefaultRefreshLead,
		refreshMaxDelay: DefaultRefreshMaxDelay,
		loading:         true,
		subscribers:     make(map[int]func(Snapshot)),
		refreshC:        make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.runScheduler()
	return s
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a user is present
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// Loading reports whether the initial CheckAuth is still pending.
// It is not a per-operation busy flag.
func (s *Store) Loading() bool {
	return s.Snapshot().Loading
}

// Error returns the last user-facing error message
func (s *Store) Error() string {
	return s.Snapshot().Error
}

// Subscribe registers fn to receive every state change. The returned
// function unregisters it. fn is called without the store lock held.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// CheckAuth asks the auth service who the ambient session belongs to.
// It never fails: any error leaves the store unauthenticated.
func (s *Store) CheckAuth(ctx context.Context) {
	gen := s.currentGeneration()

	resp, err := s.api.WhoAmI(ctx)
	var auth *authState
	if err == nil {
		auth, err = newAuthState(resp)
	}
	if err != nil {
		slog.Debug("Session check found no valid session", "error", err)
	}

	s.mu.Lock()
	switch {
	case s.generation != gen:
		slog.Debug("Discarding stale session check result")
	case auth != nil:
		s.applyAuthLocked(auth)
	default:
		s.clearLocked()
	}
	s.loading = false
	snap := s.publishLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Login submits credentials and returns the MFA challenge.
// It does not authenticate: MFA is mandatory.
func (s *Store) Login(ctx context.Context, email, password string) (*Challenge, error) {
	s.setError("")

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		loginErr := newLoginError(err)
		slog.Warn("Login failed", "email", email, "error", err)
		s.setError(loginErr.Message)
		return nil, loginErr
	}

	return &Challenge{ChallengeName: resp.ChallengeName, Session: resp.Session}, nil
}

// VerifyMFA submits the code for a challenge session. Success is the
// authentication boundary: user, expiry and CSRF token populate together.
func (s *Store) VerifyMFA(ctx context.Context, session, code string) error {
	s.setError("")

	resp, err := s.api.VerifyMFA(ctx, session, code)
	var auth *authState
	if err == nil {
		auth, err = newAuthState(resp)
	}
	if err != nil {
		mfaErr := newMFAError(err)
		slog.Warn("MFA verification failed", "error", err, "locked", mfaErr.Locked())
		s.setError(mfaErr.Message)
		return mfaErr
	}

	s.mu.Lock()
	s.applyAuthLocked(auth)
	snap := s.publishLocked()
	s.mu.Unlock()

	slog.Info("MFA verified, session established", "user_id", auth.user.ID, "expires_at", auth.expiresAt)
	s.notify(snap)
	return nil
}

// Logout ends the session. The logout call is best-effort; local state is
// always cleared and application state reset, even when the service is down.
func (s *Store) Logout(ctx context.Context) {
	token := s.Snapshot().CSRFToken

	if err := s.api.Logout(ctx, token); err != nil {
		slog.Debug("Logout request failed, clearing local session anyway", "error", err)
	}

	s.mu.Lock()
	s.clearLocked()
	s.generation++
	s.errMsg = ""
	if s.reset != nil {
		s.reset.ResetToInitial()
	}
	snap := s.publishLocked()
	s.mu.Unlock()

	slog.Info("Logged out")
	s.notify(snap)
}

// RefreshSession asks the service to extend the session.
// A rejection force-clears the session and returns ErrSessionExpired.
// A network failure changes nothing and returns the transport error.
func (s *Store) RefreshSession(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	token := s.csrfToken
	authenticated := s.user != nil
	s.mu.Unlock()

	if !authenticated {
		return ErrNotAuthenticated
	}

	resp, err := s.api.Refresh(ctx, token)
	if client.IsNetworkError(err) {
		slog.Warn("Session refresh failed, will retry on next schedule", "error", err)
		return fmt.Errorf("refresh session: %w", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		slog.Debug("Discarding stale refresh result")
		return nil
	}

	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		s.clearLocked()
		s.generation++
		snap := s.publishLocked()
		s.mu.Unlock()

		slog.Info("Session refresh rejected, forcing logout", "status", apiErr.StatusCode)
		s.notify(snap)
		return ErrSessionExpired
	case err != nil:
		s.mu.Unlock()
		return fmt.Errorf("refresh session: %w", err)
	case resp.ExpiresAt <= 0:
		s.mu.Unlock()
		return fmt.Errorf("refresh session: response has no expiry")
	}

	s.expiresAt = time.UnixMilli(resp.ExpiresAt)
	if resp.CSRFToken != "" {
		s.csrfToken = resp.CSRFToken
	}
	s.generation++
	s.rearmLocked()
	snap := s.publishLocked()
	s.mu.Unlock()

	slog.Debug("Session refreshed", "expires_at", snap.ExpiresAt)
	s.notify(snap)
	return nil
}

// ClearError clears the error message only
func (s *Store) ClearError() {
	s.setError("")
}

// Close disarms the refresh timer and stops the scheduler
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.disarmLocked()
		s.mu.Unlock()
		close(s.done)
	})
}

// authState is a validated user/expiry/token triple
type authState struct {
	user      *User
	expiresAt time.Time
	csrfToken string
}

// newAuthState validates a session response; all three fields must be present
func newAuthState(resp *client.SessionResponse) (*authState, error) {
	if resp == nil {
		return nil, errors.New("empty session response")
	}
	if resp.User.ID == "" || resp.ExpiresAt <= 0 || resp.CSRFToken == "" {
		return nil, errors.New("incomplete session response from auth service")
	}
	return &authState{
		user: &User{
			ID:          resp.User.ID,
			Email:       resp.User.Email,
			Permissions: append([]string(nil), resp.User.Permissions...),
			Roles:       append([]string(nil), resp.User.Roles...),
		},
		expiresAt: time.UnixMilli(resp.ExpiresAt),
		csrfToken: resp.CSRFToken,
	}, nil
}

func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	if s.errMsg == msg {
		s.mu.Unlock()
		return
	}
	s.errMsg = msg
	snap := s.publishLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// applyAuthLocked populates user, expiry and token atomically. Must hold s.mu.
func (s *Store) applyAuthLocked(a *authState) {
	s.user = a.user
	s.expiresAt = a.expiresAt
	s.csrfToken = a.csrfToken
	s.generation++
	s.rearmLocked()
}

// clearLocked drops identity, expiry and token. Must hold s.mu.
func (s *Store) clearLocked() {
	s.user = nil
	s.expiresAt = time.Time{}
	s.csrfToken = ""
	s.disarmLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:      s.user,
		ExpiresAt: s.expiresAt,
		CSRFToken: s.csrfToken,
		Error:     s.errMsg,
		Loading:   s.loading,
		Version:   s.version,
	}
}

// publishLocked stamps a new version on the current state. Must hold s.mu.
func (s *Store) publishLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
