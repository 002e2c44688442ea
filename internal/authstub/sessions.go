// ABOUTME: Server-side session and MFA challenge storage for the dev auth service
// ABOUTME: Sessions, challenges and lockouts all live in the TTL cache

package authstub

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jschulte/usmax-nda-sub000/internal/cache"
	"k8s.io/utils/clock"
)

var errSessionNotFound = errors.New("session not found")

// Session is a server-side authenticated session
type Session struct {
	ID        string
	User      *User
	CSRFToken string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Challenge is a pending MFA step. attemptsLeft is guarded by mu.
type Challenge struct {
	ID    string
	Email string
	User  *User

	mu           sync.Mutex
	attemptsLeft int
}

// fail records a wrong code and returns the attempts left
func (c *Challenge) fail() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attemptsLeft > 0 {
		c.attemptsLeft--
	}
	return c.attemptsLeft
}

// SessionStore manages sessions, challenges and lockouts on one cache
type SessionStore struct {
	cache *cache.Cache
	clock clock.PassiveClock
}

// NewSessionStore creates a store over c
func NewSessionStore(c *cache.Cache, clk clock.PassiveClock) *SessionStore {
	return &SessionStore{cache: c, clock: clk}
}

// Create generates a new session with a fresh CSRF token
func (s *SessionStore) Create(user *User, ttl time.Duration) (*Session, error) {
	sessionID, err := randomToken()
	if err != nil {
		return nil, err
	}
	csrfToken, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &Session{
		ID:        sessionID,
		User:      user,
		CSRFToken: csrfToken,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	s.cache.SetWithTTL(sessionKey(sessionID), session, ttl)
	return session, nil
}

// Get retrieves a live session by ID
func (s *SessionStore) Get(sessionID string) (*Session, error) {
	val, ok := s.cache.Get(sessionKey(sessionID))
	if !ok {
		return nil, errSessionNotFound
	}
	session, ok := val.(*Session)
	if !ok {
		return nil, errors.New("invalid session data")
	}
	return session, nil
}

// CSRFToken implements middleware.TokenLookup
func (s *SessionStore) CSRFToken(sessionID string) (string, bool) {
	session, err := s.Get(sessionID)
	if err != nil {
		return "", false
	}
	return session.CSRFToken, true
}

// Extend replaces a session with a new expiry and rotated CSRF token.
// The stored session is never mutated in place.
func (s *SessionStore) Extend(sessionID string, ttl time.Duration) (*Session, error) {
	old, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	csrfToken, err := randomToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        old.ID,
		User:      old.User,
		CSRFToken: csrfToken,
		ExpiresAt: s.clock.Now().Add(ttl),
		CreatedAt: old.CreatedAt,
	}
	s.cache.SetWithTTL(sessionKey(sessionID), session, ttl)
	return session, nil
}

// Delete removes a session
func (s *SessionStore) Delete(sessionID string) {
	s.cache.Clear(sessionKey(sessionID))
}

// Active counts live sessions
func (s *SessionStore) Active() int {
	// Challenges and lockouts share the cache, so count by type
	n := 0
	s.cache.Range(func(key string, _ interface{}) bool {
		if strings.HasPrefix(key, "session:") {
			n++
		}
		return true
	})
	return n
}

// NewChallenge stores a pending MFA challenge for user
func (s *SessionStore) NewChallenge(user *User, attempts int, ttl time.Duration) *Challenge {
	c := &Challenge{
		ID:           uuid.NewString(),
		Email:        user.Email,
		User:         user,
		attemptsLeft: attempts,
	}
	s.cache.SetWithTTL(challengeKey(c.ID), c, ttl)
	return c
}

// LookupChallenge returns a live challenge without consuming it
func (s *SessionStore) LookupChallenge(id string) (*Challenge, bool) {
	val, ok := s.cache.Get(challengeKey(id))
	if !ok {
		return nil, false
	}
	c, ok := val.(*Challenge)
	return c, ok
}

// ConsumeChallenge removes a challenge; only one caller can succeed
func (s *SessionStore) ConsumeChallenge(id string) bool {
	_, ok := s.cache.Take(challengeKey(id))
	return ok
}

// Lock blocks logins for email for window
func (s *SessionStore) Lock(email string, window time.Duration) {
	s.cache.SetWithTTL(lockKey(email), true, window)
}

// LockedFor returns the remaining lockout for email
func (s *SessionStore) LockedFor(email string) (time.Duration, bool) {
	return s.cache.TTLRemaining(lockKey(email))
}

// randomToken returns 32 bytes of cryptographically secure random data, base64url-encoded
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func challengeKey(id string) string {
	return "challenge:" + id
}

func lockKey(email string) string {
	return "lock:" + strings.ToLower(email)
}
