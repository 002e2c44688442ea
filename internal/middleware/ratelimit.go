// ABOUTME: Fixed-window attempt limiting for the credential endpoints
// ABOUTME: Counts login and MFA submissions per client host and answers 429 past the limit

package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// sweepEvery is how many new windows are opened between purges of stale ones
const sweepEvery = 100

type window struct {
	attempts int
	resetAt  time.Time
}

// AttemptLimiter allows up to limit attempts per key in each fixed window.
// It is safe for concurrent use.
type AttemptLimiter struct {
	limit  int
	period time.Duration
	clock  clock.PassiveClock

	mu      sync.Mutex
	windows map[string]*window
	opened  int
}

// LimiterOption configures an AttemptLimiter
type LimiterOption func(*AttemptLimiter)

// WithLimiterClock injects the time source
func WithLimiterClock(c clock.PassiveClock) LimiterOption {
	return func(l *AttemptLimiter) {
		l.clock = c
	}
}

// NewAttemptLimiter creates a limiter allowing limit attempts per period
func NewAttemptLimiter(limit int, period time.Duration, opts ...LimiterOption) *AttemptLimiter {
	l := &AttemptLimiter{
		limit:   limit,
		period:  period,
		clock:   clock.RealClock{},
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Take records an attempt for key. When the key is over its limit, ok is
// false and wait is the time until its window resets.
func (l *AttemptLimiter) Take(key string) (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		l.windows[key] = &window{attempts: 1, resetAt: now.Add(l.period)}
		if l.opened++; l.opened >= sweepEvery {
			l.purge(now)
			l.opened = 0
		}
		return 0, true
	}

	if w.attempts >= l.limit {
		return w.resetAt.Sub(now), false
	}
	w.attempts++
	return 0, true
}

// Tracked returns the number of keys with an open or stale window
func (l *AttemptLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// purge drops windows that have reset. Must hold l.mu.
func (l *AttemptLimiter) purge(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// RemoteHost keys attempts by the request's remote host. The router's RealIP
// middleware has already applied any X-Forwarded-For or X-Real-IP header.
func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host
}

// LimitAttempts rejects requests whose key is over the limiter's budget.
// A nil limiter disables limiting; an empty key is never limited.
// onReject, when non-nil, receives the path of every rejected request.
func LimitAttempts(l *AttemptLimiter, key func(*http.Request) string, onReject func(path string)) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if l == nil || key == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next(w, r)
				return
			}

			wait, ok := l.Take(k)
			if ok {
				next(w, r)
				return
			}

			seconds := int(math.Ceil(wait.Seconds()))
			slog.Warn("Too many auth attempts",
				"client", k,
				"path", sanitizePath(r.URL.Path),
				"retry_after", seconds,
				"request_id", RequestID(r.Context()),
			)
			if onReject != nil {
				onReject(r.URL.Path)
			}

			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			WriteJSONError(w, fmt.Sprintf("Too many attempts. Try again in %d seconds", seconds), http.StatusTooManyRequests)
		}
	}
}
