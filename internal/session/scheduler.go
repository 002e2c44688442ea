// ABOUTME: Proactive session refresh scheduling for the auth store
// ABOUTME: Arms a single timer ahead of expiry and runs the refresh off the timer goroutine

package session

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultRefreshLead is how far ahead of expiry the refresh fires
	DefaultRefreshLead = 5 * time.Minute
	// DefaultRefreshMaxDelay caps the timer so long sessions still refresh periodically
	DefaultRefreshMaxDelay = 30 * time.Minute
	// refreshTimeout bounds a single background refresh call
	refreshTimeout = 30 * time.Second
)

// refreshDelay computes the timer delay for a session expiring at expiresAt.
// ok is false when the refresh point has already passed.
func refreshDelay(expiresAt, now time.Time, lead, maxDelay time.Duration) (time.Duration, bool) {
	delay := expiresAt.Add(-lead).Sub(now)
	if delay <= 0 {
		return 0, false
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay, true
}

// rearmLocked replaces any pending refresh timer based on the current expiry.
// Must hold s.mu.
func (s *Store) rearmLocked() {
	s.disarmLocked()
	if s.user == nil || s.expiresAt.IsZero() {
		return
	}

	delay, ok := refreshDelay(s.expiresAt, s.clock.Now(), s.refreshLead, s.refreshMaxDelay)
	if !ok {
		slog.Debug("Session inside refresh lead, no timer armed", "expires_at", s.expiresAt)
		return
	}

	s.refreshTimer = s.clock.AfterFunc(delay, s.signalRefresh)
	slog.Debug("Session refresh scheduled", "delay", delay)
}

// disarmLocked stops the pending refresh timer. Must hold s.mu.
func (s *Store) disarmLocked() {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}

// signalRefresh is the timer callback. It never blocks: the timer may fire
// while the clock implementation holds its own lock.
func (s *Store) signalRefresh() {
	select {
	case s.refreshC <- struct{}{}:
	default:
	}
}

// runScheduler performs timer-triggered refreshes until Close
func (s *Store) runScheduler() {
	for {
		select {
		case <-s.done:
			return
		case <-s.refreshC:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			if err := s.RefreshSession(ctx); err != nil {
				slog.Debug("Scheduled refresh did not extend session", "error", err)
			}
			cancel()
		}
	}
}
