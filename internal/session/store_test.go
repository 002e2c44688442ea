// ABOUTME: Tests for the auth session store
// ABOUTME: Uses a scripted fake API and a fake clock for refresh scheduling

package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
	testingclock "k8s.io/utils/clock/testing"
)

var baseTime = time.UnixMilli(1_760_000_000_000)

type fakeAPI struct {
	mu sync.Mutex

	whoAmI    func() (*client.SessionResponse, error)
	login     func(email, password string) (*client.LoginChallenge, error)
	verifyMFA func(session, code string) (*client.SessionResponse, error)
	refresh   func(csrf string) (*client.RefreshResponse, error)
	logout    func(csrf string) error

	refreshCalls []string
	logoutCalls  []string
	verifyCalls  int
	refreshed    chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{refreshed: make(chan struct{}, 10)}
}

func (f *fakeAPI) WhoAmI(ctx context.Context) (*client.SessionResponse, error) {
	if f.whoAmI == nil {
		return nil, &client.APIError{StatusCode: http.StatusUnauthorized}
	}
	return f.whoAmI()
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*client.LoginChallenge, error) {
	return f.login(email, password)
}

func (f *fakeAPI) VerifyMFA(ctx context.Context, session, code string) (*client.SessionResponse, error) {
	f.mu.Lock()
	f.verifyCalls++
	f.mu.Unlock()
	return f.verifyMFA(session, code)
}

func (f *fakeAPI) Refresh(ctx context.Context, csrf string) (*client.RefreshResponse, error) {
	f.mu.Lock()
	f.refreshCalls = append(f.refreshCalls, csrf)
	f.mu.Unlock()
	defer func() { f.refreshed <- struct{}{} }()
	if f.refresh == nil {
		return &client.RefreshResponse{ExpiresAt: baseTime.Add(time.Hour).UnixMilli()}, nil
	}
	return f.refresh(csrf)
}

func (f *fakeAPI) Logout(ctx context.Context, csrf string) error {
	f.mu.Lock()
	f.logoutCalls = append(f.logoutCalls, csrf)
	f.mu.Unlock()
	if f.logout == nil {
		return nil
	}
	return f.logout(csrf)
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshCalls)
}

type countingReset struct {
	mu    sync.Mutex
	calls int
}

func (r *countingReset) ResetToInitial() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *countingReset) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func adminSession(expiresIn time.Duration, csrf string) *client.SessionResponse {
	return &client.SessionResponse{
		User: client.User{
			ID:          "user-1",
			Email:       "admin@usmax.com",
			Permissions: []string{"nda:create", "nda:view"},
			Roles:       []string{"Admin"},
		},
		ExpiresAt: baseTime.Add(expiresIn).UnixMilli(),
		CSRFToken: csrf,
	}
}

func newTestStore(t *testing.T, api *fakeAPI, reset Resetter) (*Store, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(baseTime)
	s := New(api, reset, WithClock(fc))
	t.Cleanup(s.Close)
	return s, fc
}

func authenticate(t *testing.T, s *Store, api *fakeAPI, expiresIn time.Duration) {
	t.Helper()
	api.verifyMFA = func(session, code string) (*client.SessionResponse, error) {
		return adminSession(expiresIn, "csrf-1"), nil
	}
	if err := s.VerifyMFA(context.Background(), "challenge", "123456"); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
}

func waitForRefresh(t *testing.T, api *fakeAPI) {
	t.Helper()
	select {
	case <-api.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled refresh")
	}
}

func TestNewStoreStartsLoadingAndUnauthenticated(t *testing.T) {
	s, _ := newTestStore(t, newFakeAPI(), nil)

	if !s.Loading() {
		t.Error("expected loading before CheckAuth")
	}
	if s.IsAuthenticated() {
		t.Error("expected unauthenticated before CheckAuth")
	}
}

func TestCheckAuth(t *testing.T) {
	tests := []struct {
		name     string
		whoAmI   func() (*client.SessionResponse, error)
		wantAuth bool
	}{
		{
			name:     "valid session",
			whoAmI:   func() (*client.SessionResponse, error) { return adminSession(time.Hour, "csrf-1"), nil },
			wantAuth: true,
		},
		{
			name:   "unauthorized",
			whoAmI: func() (*client.SessionResponse, error) { return nil, &client.APIError{StatusCode: 401} },
		},
		{
			name:   "network error",
			whoAmI: func() (*client.SessionResponse, error) { return nil, &client.NetworkError{Err: errors.New("refused")} },
		},
		{
			name: "missing csrf token",
			whoAmI: func() (*client.SessionResponse, error) {
				return adminSession(time.Hour, ""), nil
			},
		},
		{
			name: "missing expiry",
			whoAmI: func() (*client.SessionResponse, error) {
				resp := adminSession(time.Hour, "csrf-1")
				resp.ExpiresAt = 0
				return resp, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.whoAmI = tt.whoAmI
			s, _ := newTestStore(t, api, nil)

			s.CheckAuth(context.Background())

			if s.Loading() {
				t.Error("expected loading false after CheckAuth")
			}
			if got := s.IsAuthenticated(); got != tt.wantAuth {
				t.Errorf("expected authenticated %v, got %v", tt.wantAuth, got)
			}
			snap := s.Snapshot()
			if !tt.wantAuth && (snap.CSRFToken != "" || !snap.ExpiresAt.IsZero()) {
				t.Errorf("expected cleared token and expiry, got %q %v", snap.CSRFToken, snap.ExpiresAt)
			}
		})
	}
}

func TestCheckAuthFlipsLoadingOnce(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)

	var transitions int
	last := true
	s.Subscribe(func(snap Snapshot) {
		if last && !snap.Loading {
			transitions++
		}
		last = snap.Loading
	})

	s.CheckAuth(context.Background())
	s.CheckAuth(context.Background())

	if transitions != 1 {
		t.Errorf("expected loading to flip false exactly once, got %d", transitions)
	}
}

func TestLoginReturnsChallengeWithoutAuthenticating(t *testing.T) {
	api := newFakeAPI()
	api.login = func(email, password string) (*client.LoginChallenge, error) {
		return &client.LoginChallenge{ChallengeName: "SOFTWARE_TOKEN_MFA", Session: "session-123"}, nil
	}
	s, _ := newTestStore(t, api, nil)

	challenge, err := s.Login(context.Background(), "admin@usmax.com", "Admin123!@#$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if challenge.Session != "session-123" {
		t.Errorf("expected session-123, got %s", challenge.Session)
	}
	if s.IsAuthenticated() {
		t.Error("expected login alone not to authenticate")
	}
}

func TestLoginFailureSetsError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		invalid bool
	}{
		{"server message", &client.APIError{StatusCode: 401, Message: "Invalid email or password"}, "Invalid email or password", true},
		{"no server message", &client.APIError{StatusCode: 500}, "Login failed", true},
		{"network", &client.NetworkError{URL: "http://x", Err: errors.New("refused")}, "cannot connect to auth service at http://x: refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.login = func(email, password string) (*client.LoginChallenge, error) { return nil, tt.err }
			s, _ := newTestStore(t, api, nil)

			_, err := s.Login(context.Background(), "a@b.co", "password12345")

			var loginErr *LoginError
			if !errors.As(err, &loginErr) {
				t.Fatalf("expected LoginError, got %v", err)
			}
			if loginErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, loginErr.Message)
			}
			if got := errors.Is(err, ErrInvalidCredentials); got != tt.invalid {
				t.Errorf("expected ErrInvalidCredentials match %v, got %v", tt.invalid, got)
			}
			if s.Error() != tt.wantMsg {
				t.Errorf("expected store error %q, got %q", tt.wantMsg, s.Error())
			}
		})
	}
}

func TestLoginThenVerifyAuthenticates(t *testing.T) {
	api := newFakeAPI()
	api.login = func(email, password string) (*client.LoginChallenge, error) {
		return &client.LoginChallenge{ChallengeName: "SOFTWARE_TOKEN_MFA", Session: "session-123"}, nil
	}
	api.verifyMFA = func(session, code string) (*client.SessionResponse, error) {
		if session != "session-123" || code != "123456" {
			t.Errorf("unexpected verify args %s %s", session, code)
		}
		return adminSession(time.Hour, "csrf-1"), nil
	}
	s, _ := newTestStore(t, api, nil)

	challenge, err := s.Login(context.Background(), "admin@usmax.com", "Admin123!@#$")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if err := s.VerifyMFA(context.Background(), challenge.Session, "123456"); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}

	snap := s.Snapshot()
	if !snap.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
	if snap.User.Email != "admin@usmax.com" {
		t.Errorf("expected admin@usmax.com, got %s", snap.User.Email)
	}
	if snap.CSRFToken != "csrf-1" {
		t.Errorf("expected csrf-1, got %s", snap.CSRFToken)
	}
	if !snap.ExpiresAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", baseTime.Add(time.Hour), snap.ExpiresAt)
	}
}

func TestVerifyMFAFailureCarriesAttempts(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)

	for _, remaining := range []int{2, 1, 0} {
		n := remaining
		api.verifyMFA = func(session, code string) (*client.SessionResponse, error) {
			return nil, &client.APIError{StatusCode: 401, Message: "Invalid MFA code", AttemptsRemaining: &n}
		}

		err := s.VerifyMFA(context.Background(), "s", "000000")

		var mfaErr *MFAError
		if !errors.As(err, &mfaErr) {
			t.Fatalf("expected MFAError, got %v", err)
		}
		if mfaErr.AttemptsRemaining == nil || *mfaErr.AttemptsRemaining != remaining {
			t.Errorf("expected %d attempts, got %v", remaining, mfaErr.AttemptsRemaining)
		}
		if got := errors.Is(err, ErrLockedOut); got != (remaining == 0) {
			t.Errorf("attempts %d: expected locked %v, got %v", remaining, remaining == 0, got)
		}
		if !errors.Is(err, ErrInvalidMFACode) {
			t.Errorf("expected ErrInvalidMFACode for attempts %d", remaining)
		}
	}

	if s.IsAuthenticated() {
		t.Error("expected failed MFA not to authenticate")
	}
}

func TestVerifyMFAIncompleteResponseFails(t *testing.T) {
	api := newFakeAPI()
	api.verifyMFA = func(session, code string) (*client.SessionResponse, error) {
		return adminSession(time.Hour, ""), nil
	}
	s, _ := newTestStore(t, api, nil)

	if err := s.VerifyMFA(context.Background(), "s", "123456"); err == nil {
		t.Fatal("expected error for response without csrf token")
	}
	if s.IsAuthenticated() {
		t.Error("expected store to stay unauthenticated")
	}
}

func TestVerifyMFACopiesPermissions(t *testing.T) {
	api := newFakeAPI()
	resp := adminSession(time.Hour, "csrf-1")
	api.verifyMFA = func(session, code string) (*client.SessionResponse, error) { return resp, nil }
	s, _ := newTestStore(t, api, nil)

	if err := s.VerifyMFA(context.Background(), "s", "123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.User.Permissions[0] = "tampered"

	if got := s.Snapshot().User.Permissions[0]; got != "nda:create" {
		t.Errorf("expected snapshot isolated from response, got %s", got)
	}
}

func TestLogoutClearsAndResetsEveryCall(t *testing.T) {
	api := newFakeAPI()
	reset := &countingReset{}
	s, _ := newTestStore(t, api, reset)
	authenticate(t, s, api, time.Hour)

	s.Logout(context.Background())
	s.Logout(context.Background())

	if s.IsAuthenticated() {
		t.Error("expected unauthenticated after logout")
	}
	snap := s.Snapshot()
	if snap.CSRFToken != "" || !snap.ExpiresAt.IsZero() || snap.Error != "" {
		t.Errorf("expected cleared state, got %+v", snap)
	}
	if reset.count() != 2 {
		t.Errorf("expected reset once per logout call, got %d", reset.count())
	}
	if len(api.logoutCalls) != 2 || api.logoutCalls[0] != "csrf-1" || api.logoutCalls[1] != "" {
		t.Errorf("unexpected logout calls %v", api.logoutCalls)
	}
}

func TestLogoutClearsEvenWhenServiceFails(t *testing.T) {
	api := newFakeAPI()
	api.logout = func(csrf string) error {
		return &client.NetworkError{Err: errors.New("refused")}
	}
	reset := &countingReset{}
	s, _ := newTestStore(t, api, reset)
	authenticate(t, s, api, time.Hour)

	s.Logout(context.Background())

	if s.IsAuthenticated() {
		t.Error("expected local session cleared when logout call fails")
	}
	if reset.count() != 1 {
		t.Errorf("expected reset to run, got %d", reset.count())
	}
}

func TestRefreshSession(t *testing.T) {
	t.Run("not authenticated makes no call", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := newTestStore(t, api, nil)

		if err := s.RefreshSession(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if api.refreshCount() != 0 {
			t.Errorf("expected no refresh call, got %d", api.refreshCount())
		}
	})

	t.Run("success replaces expiry and rotates token", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := newTestStore(t, api, nil)
		authenticate(t, s, api, time.Hour)
		newExpiry := baseTime.Add(2 * time.Hour)
		api.refresh = func(csrf string) (*client.RefreshResponse, error) {
			if csrf != "csrf-1" {
				t.Errorf("expected csrf-1 on refresh, got %s", csrf)
			}
			return &client.RefreshResponse{ExpiresAt: newExpiry.UnixMilli(), CSRFToken: "csrf-2"}, nil
		}

		if err := s.RefreshSession(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := s.Snapshot()
		if !snap.ExpiresAt.Equal(newExpiry) {
			t.Errorf("expected expiry %v, got %v", newExpiry, snap.ExpiresAt)
		}
		if snap.CSRFToken != "csrf-2" {
			t.Errorf("expected csrf-2, got %s", snap.CSRFToken)
		}
	})

	t.Run("success without token keeps old token", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := newTestStore(t, api, nil)
		authenticate(t, s, api, time.Hour)

		if err := s.RefreshSession(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Snapshot().CSRFToken != "csrf-1" {
			t.Errorf("expected csrf-1 kept, got %s", s.Snapshot().CSRFToken)
		}
	})

	t.Run("rejection forces logout without reset", func(t *testing.T) {
		api := newFakeAPI()
		reset := &countingReset{}
		s, _ := newTestStore(t, api, reset)
		authenticate(t, s, api, time.Hour)
		api.refresh = func(csrf string) (*client.RefreshResponse, error) {
			return nil, &client.APIError{StatusCode: http.StatusUnauthorized}
		}

		err := s.RefreshSession(context.Background())
		if !errors.Is(err, ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
		if s.IsAuthenticated() {
			t.Error("expected unauthenticated after rejected refresh")
		}
		if s.Snapshot().CSRFToken != "" {
			t.Error("expected csrf token cleared")
		}
		if reset.count() != 0 {
			t.Errorf("expected no app state reset, got %d", reset.count())
		}
	})

	t.Run("network error changes nothing", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := newTestStore(t, api, nil)
		authenticate(t, s, api, time.Hour)
		before := s.Snapshot()
		api.refresh = func(csrf string) (*client.RefreshResponse, error) {
			return nil, &client.NetworkError{Err: errors.New("refused")}
		}

		err := s.RefreshSession(context.Background())
		if !client.IsNetworkError(err) {
			t.Errorf("expected network error, got %v", err)
		}
		after := s.Snapshot()
		if after.User != before.User || !after.ExpiresAt.Equal(before.ExpiresAt) || after.CSRFToken != before.CSRFToken {
			t.Errorf("expected unchanged state, got %+v", after)
		}
	})

	t.Run("invalid expiry leaves state", func(t *testing.T) {
		api := newFakeAPI()
		s, _ := newTestStore(t, api, nil)
		authenticate(t, s, api, time.Hour)
		api.refresh = func(csrf string) (*client.RefreshResponse, error) {
			return &client.RefreshResponse{ExpiresAt: 0}, nil
		}

		if err := s.RefreshSession(context.Background()); err == nil {
			t.Error("expected error for missing expiry")
		}
		if !s.Snapshot().ExpiresAt.Equal(baseTime.Add(time.Hour)) {
			t.Error("expected expiry unchanged")
		}
	})
}

func TestRefreshDiscardedAfterLogout(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)
	authenticate(t, s, api, time.Hour)

	api.refresh = func(csrf string) (*client.RefreshResponse, error) {
		s.Logout(context.Background())
		return &client.RefreshResponse{ExpiresAt: baseTime.Add(3 * time.Hour).UnixMilli()}, nil
	}

	if err := s.RefreshSession(context.Background()); err != nil {
		t.Fatalf("expected stale refresh to be discarded quietly, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("expected logout to win over in-flight refresh")
	}
}

func TestScheduledRefreshFiresBeforeExpiry(t *testing.T) {
	api := newFakeAPI()
	s, fc := newTestStore(t, api, nil)
	authenticate(t, s, api, 15*time.Minute)

	fc.Step(9 * time.Minute)
	if api.refreshCount() != 0 {
		t.Fatalf("expected no refresh yet, got %d", api.refreshCount())
	}

	fc.Step(time.Minute)
	waitForRefresh(t, api)

	if api.refreshCount() != 1 {
		t.Errorf("expected one refresh, got %d", api.refreshCount())
	}
}

func TestScheduledRefreshIsClamped(t *testing.T) {
	api := newFakeAPI()
	s, fc := newTestStore(t, api, nil)
	authenticate(t, s, api, 8*time.Hour)

	fc.Step(DefaultRefreshMaxDelay - time.Second)
	if api.refreshCount() != 0 {
		t.Fatalf("expected no refresh before clamp, got %d", api.refreshCount())
	}

	fc.Step(time.Second)
	waitForRefresh(t, api)
}

func TestNoTimerInsideRefreshLead(t *testing.T) {
	api := newFakeAPI()
	s, fc := newTestStore(t, api, nil)
	authenticate(t, s, api, 3*time.Minute)

	if fc.HasWaiters() {
		t.Error("expected no refresh timer when already inside the lead window")
	}
}

func TestLogoutDisarmsTimer(t *testing.T) {
	api := newFakeAPI()
	s, fc := newTestStore(t, api, nil)
	authenticate(t, s, api, time.Hour)

	if !fc.HasWaiters() {
		t.Fatal("expected refresh timer after authentication")
	}
	s.Logout(context.Background())
	if fc.HasWaiters() {
		t.Error("expected logout to disarm refresh timer")
	}
}

func TestRefreshDelay(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn time.Duration
		wantDelay time.Duration
		wantOK    bool
	}{
		{"normal", 15 * time.Minute, 10 * time.Minute, true},
		{"clamped", 2 * time.Hour, 30 * time.Minute, true},
		{"exactly at lead", 5 * time.Minute, 0, false},
		{"already expired", -time.Minute, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, ok := refreshDelay(baseTime.Add(tt.expiresIn), baseTime, DefaultRefreshLead, DefaultRefreshMaxDelay)
			if ok != tt.wantOK {
				t.Errorf("expected ok %v, got %v", tt.wantOK, ok)
			}
			if delay != tt.wantDelay {
				t.Errorf("expected delay %v, got %v", tt.wantDelay, delay)
			}
		})
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)

	var calls int
	unsubscribe := s.Subscribe(func(Snapshot) { calls++ })
	s.CheckAuth(context.Background())
	unsubscribe()
	s.CheckAuth(context.Background())

	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
}

func TestPublishedSnapshotsAreVersioned(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)

	var versions []uint64
	s.Subscribe(func(snap Snapshot) { versions = append(versions, snap.Version) })

	authenticate(t, s, api, 30*time.Minute)
	if err := s.RefreshSession(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	s.Logout(context.Background())

	if len(versions) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("expected increasing versions, got %v", versions)
		}
	}
	if got := s.Snapshot().Version; got != versions[2] {
		t.Errorf("expected current version %d, got %d", versions[2], got)
	}
}

func TestClearError(t *testing.T) {
	api := newFakeAPI()
	api.login = func(email, password string) (*client.LoginChallenge, error) {
		return nil, &client.APIError{StatusCode: 401, Message: "Invalid email or password"}
	}
	s, _ := newTestStore(t, api, nil)
	s.Login(context.Background(), "a@b.co", "password12345")

	s.ClearError()

	if s.Error() != "" {
		t.Errorf("expected error cleared, got %q", s.Error())
	}
}
