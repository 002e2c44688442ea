// ABOUTME: Tests for server-side sessions, MFA challenges and lockouts
// ABOUTME: Uses a fake clock to drive cache expiry

package authstub

import (
	"sync"
	"testing"
	"time"

	"github.com/jschulte/usmax-nda-sub000/internal/cache"
	testingclock "k8s.io/utils/clock/testing"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	c := cache.New(time.Hour, cache.WithClock(fc))
	t.Cleanup(c.Close)
	return NewSessionStore(c, fc), fc
}

func testUser() *User {
	return &User{ID: "u-1", Email: "Admin@usmax.com"}
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store, fc := newTestSessionStore(t)

	s, err := store.Create(testUser(), 30*time.Minute)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" || s.CSRFToken == "" || s.ID == s.CSRFToken {
		t.Errorf("expected distinct random ID and token, got %q / %q", s.ID, s.CSRFToken)
	}
	if !s.ExpiresAt.Equal(fc.Now().Add(30 * time.Minute)) {
		t.Errorf("unexpected expiry %v", s.ExpiresAt)
	}

	got, err := store.Get(s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("Get: %v", err)
	}
	if token, ok := store.CSRFToken(s.ID); !ok || token != s.CSRFToken {
		t.Errorf("expected CSRF lookup to return %q, got %q", s.CSRFToken, token)
	}
	if store.Active() != 1 {
		t.Errorf("expected 1 active session, got %d", store.Active())
	}

	store.Delete(s.ID)
	if _, err := store.Get(s.ID); err == nil {
		t.Error("expected session to be deleted")
	}
	if _, ok := store.CSRFToken(s.ID); ok {
		t.Error("expected no CSRF token for deleted session")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store, fc := newTestSessionStore(t)
	s, _ := store.Create(testUser(), time.Minute)

	fc.Step(time.Minute + time.Second)

	if _, err := store.Get(s.ID); err == nil {
		t.Error("expected session to expire")
	}
	if _, err := store.Extend(s.ID, time.Minute); err == nil {
		t.Error("expected Extend to fail for expired session")
	}
}

func TestSessionStore_ExtendRotatesToken(t *testing.T) {
	store, fc := newTestSessionStore(t)
	s, _ := store.Create(testUser(), 10*time.Minute)
	originalToken := s.CSRFToken

	fc.Step(5 * time.Minute)
	extended, err := store.Extend(s.ID, 10*time.Minute)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if extended.CSRFToken == originalToken {
		t.Error("expected rotated CSRF token")
	}
	if !extended.ExpiresAt.Equal(fc.Now().Add(10 * time.Minute)) {
		t.Errorf("unexpected expiry %v", extended.ExpiresAt)
	}
	if s.CSRFToken != originalToken {
		t.Error("expected original session value to stay untouched")
	}
	if !extended.CreatedAt.Equal(s.CreatedAt) {
		t.Error("expected CreatedAt to be preserved")
	}
}

func TestSessionStore_ActiveIgnoresChallengesAndLocks(t *testing.T) {
	store, _ := newTestSessionStore(t)
	store.Create(testUser(), time.Minute)
	store.NewChallenge(testUser(), 3, time.Minute)
	store.Lock("x@usmax.com", time.Minute)

	if store.Active() != 1 {
		t.Errorf("expected 1 active session, got %d", store.Active())
	}
}

func TestChallenge_FailCountsDown(t *testing.T) {
	store, _ := newTestSessionStore(t)
	c := store.NewChallenge(testUser(), 3, time.Minute)

	for _, want := range []int{2, 1, 0, 0} {
		if got := c.fail(); got != want {
			t.Errorf("expected %d attempts left, got %d", want, got)
		}
	}
}

func TestChallenge_ConsumeOnce(t *testing.T) {
	store, _ := newTestSessionStore(t)
	c := store.NewChallenge(testUser(), 3, time.Minute)

	if _, ok := store.LookupChallenge(c.ID); !ok {
		t.Fatal("expected challenge to be found")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.ConsumeChallenge(c.ID) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one consumer to win, got %d", wins)
	}
	if _, ok := store.LookupChallenge(c.ID); ok {
		t.Error("expected challenge to be gone")
	}
}

func TestChallenge_Expires(t *testing.T) {
	store, fc := newTestSessionStore(t)
	c := store.NewChallenge(testUser(), 3, 5*time.Minute)

	fc.Step(5*time.Minute + time.Second)
	if _, ok := store.LookupChallenge(c.ID); ok {
		t.Error("expected challenge to expire")
	}
}

func TestLock(t *testing.T) {
	store, fc := newTestSessionStore(t)

	if _, locked := store.LockedFor("admin@usmax.com"); locked {
		t.Fatal("expected no lock initially")
	}

	store.Lock("Admin@USMAX.com", 15*time.Minute)
	fc.Step(5 * time.Minute)

	remaining, locked := store.LockedFor("admin@usmax.com")
	if !locked {
		t.Fatal("expected lock to be case-insensitive")
	}
	if remaining != 10*time.Minute {
		t.Errorf("expected 10m remaining, got %v", remaining)
	}

	fc.Step(10*time.Minute + time.Second)
	if _, locked := store.LockedFor("admin@usmax.com"); locked {
		t.Error("expected lock to expire")
	}
}
