// ABOUTME: HTTP handlers for the dev auth service endpoints
// ABOUTME: Login, MFA verification, who-am-I, refresh, logout and health

package authstub

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"github.com/jschulte/usmax-nda-sub000/internal/metrics"
	"github.com/jschulte/usmax-nda-sub000/internal/middleware"
)

const maxBodyBytes = 1 << 16

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, client.HealthResponse{Status: "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromRequest(r)
	if !ok {
		middleware.WriteJSONError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	if remaining, locked := s.sessions.LockedFor(req.Email); locked {
		s.metrics.RecordLogin(metrics.ResultRejected)
		slog.Warn("Login rejected: account locked", "request_id", middleware.RequestID(r.Context()))
		msg := fmt.Sprintf("Account temporarily locked. Try again in %d minutes", int(math.Ceil(remaining.Minutes())))
		middleware.WriteJSONError(w, msg, http.StatusLocked)
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		slog.Info("Login failed", "request_id", middleware.RequestID(r.Context()))
		middleware.WriteJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	challenge := s.sessions.NewChallenge(user, s.cfg.MFAAttempts, s.cfg.ChallengeTTL)
	s.metrics.RecordLogin(metrics.ResultSuccess)
	slog.Info("MFA challenge issued", "user_id", user.ID, "request_id", middleware.RequestID(r.Context()))
	middleware.WriteJSON(w, http.StatusOK, client.LoginChallenge{
		ChallengeName: ChallengeSoftwareToken,
		Session:       challenge.ID,
	})
}

func (s *Server) handleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req client.MFARequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Session == "" || req.MFACode == "" {
		middleware.WriteJSONError(w, "Session and MFA code are required", http.StatusBadRequest)
		return
	}

	challenge, ok := s.sessions.LookupChallenge(req.Session)
	if !ok {
		s.metrics.RecordMFA(metrics.ResultRejected)
		middleware.WriteJSONError(w, "MFA session expired. Please log in again", http.StatusUnauthorized)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.MFACode), []byte(s.cfg.MFACode)) != 1 {
		left := challenge.fail()
		s.metrics.RecordMFA(metrics.ResultFailure)
		if left == 0 {
			s.sessions.ConsumeChallenge(challenge.ID)
			s.sessions.Lock(challenge.Email, s.cfg.LockoutWindow)
			s.metrics.RecordLockout()
			slog.Warn("MFA attempts exhausted, account locked",
				"user_id", challenge.User.ID,
				"window", s.cfg.LockoutWindow,
				"request_id", middleware.RequestID(r.Context()),
			)
		}
		writeMFAFailure(w, left)
		return
	}

	// Two concurrent correct submissions race here; only one consumes the challenge
	if !s.sessions.ConsumeChallenge(challenge.ID) {
		s.metrics.RecordMFA(metrics.ResultRejected)
		middleware.WriteJSONError(w, "MFA session expired. Please log in again", http.StatusUnauthorized)
		return
	}

	session, err := s.sessions.Create(challenge.User, s.cfg.SessionTTL)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		middleware.WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordMFA(metrics.ResultSuccess)
	s.metrics.ActiveSessions.Set(float64(s.sessions.Active()))
	slog.Info("Session created", "user_id", session.User.ID, "request_id", middleware.RequestID(r.Context()))

	s.setSessionCookie(w, session.ID, int(s.cfg.SessionTTL.Seconds()))
	middleware.WriteJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFromRequest(r)
	if !ok {
		s.metrics.RecordRefresh(metrics.ResultRejected)
		middleware.WriteJSONError(w, "Session expired", http.StatusUnauthorized)
		return
	}

	extended, err := s.sessions.Extend(session.ID, s.cfg.SessionTTL)
	if err != nil {
		s.metrics.RecordRefresh(metrics.ResultRejected)
		middleware.WriteJSONError(w, "Session expired", http.StatusUnauthorized)
		return
	}
	s.metrics.RecordRefresh(metrics.ResultSuccess)
	slog.Debug("Session extended", "user_id", extended.User.ID, "expires_at", extended.ExpiresAt)

	s.setSessionCookie(w, extended.ID, int(s.cfg.SessionTTL.Seconds()))
	middleware.WriteJSON(w, http.StatusOK, client.RefreshResponse{
		ExpiresAt: extended.ExpiresAt.UnixMilli(),
		CSRFToken: extended.CSRFToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		s.sessions.Delete(cookie.Value)
		s.metrics.ActiveSessions.Set(float64(s.sessions.Active()))
	}
	s.setSessionCookie(w, "", -1)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) sessionFromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	session, err := s.sessions.Get(cookie.Value)
	if err != nil {
		return nil, false
	}
	return session, true
}

// setSessionCookie writes the session cookie; maxAge < 0 deletes it
func (s *Server) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeMFAFailure(w http.ResponseWriter, attemptsLeft int) {
	msg := "Invalid MFA code"
	if attemptsLeft == 0 {
		msg = "Too many failed attempts. Please log in again later"
	}
	middleware.WriteJSON(w, http.StatusUnauthorized, client.ErrorResponse{
		Error:             msg,
		AttemptsRemaining: &attemptsLeft,
	})
}

func sessionResponse(session *Session) client.SessionResponse {
	u := session.User
	return client.SessionResponse{
		User: client.User{
			ID:          u.ID,
			Email:       u.Email,
			Permissions: nonNil(u.Permissions),
			Roles:       nonNil(u.Roles),
		},
		ExpiresAt: session.ExpiresAt.UnixMilli(),
		CSRFToken: session.CSRFToken,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
