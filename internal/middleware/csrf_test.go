// ABOUTME: Tests for CSRF middleware
// ABOUTME: Validates synchronizer-token checks against the session store lookup

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLookup(sessions map[string]string) TokenLookup {
	return func(id string) (string, bool) {
		tok, ok := sessions[id]
		return tok, ok
	}
}

func csrfHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return CSRF(testLookup(map[string]string{"sid-1": "token-abc"}))(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRF_SkipsSafeMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
			rr := httptest.NewRecorder()
			csrfHandler(t)(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("Expected 200 for %s, got %d", method, rr.Code)
			}
		})
	}
}

func TestCSRF_PassesWithoutSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	rr := httptest.NewRecorder()
	csrfHandler(t)(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected request without session cookie to reach handler, got %d", rr.Code)
	}
}

func TestCSRF_PassesUnknownSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-unknown"})
	rr := httptest.NewRecorder()
	csrfHandler(t)(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected unknown session to reach handler, got %d", rr.Code)
	}
}

func TestCSRF_RejectsMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
	rr := httptest.NewRecorder()
	csrfHandler(t)(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for missing header, got %d", rr.Code)
	}
}

func TestCSRF_RejectsMismatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
	req.Header.Set(CSRFHeaderName, "token-xyz")
	rr := httptest.NewRecorder()
	csrfHandler(t)(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for mismatched token, got %d", rr.Code)
	}
}

func TestCSRF_AcceptsMatchingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
	// Header names are case-insensitive; the client sends lowercase
	req.Header.Set("x-csrf-token", "token-abc")
	rr := httptest.NewRecorder()
	csrfHandler(t)(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 for matching token, got %d", rr.Code)
	}
}

func TestCheckCSRF(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"match", "token-abc", ""},
		{"missing", "", "missing header"},
		{"mismatch", "token-xyz", "token mismatch"},
		{"prefix", "token-ab", "token mismatch"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if reason := checkCSRF("token-abc", tc.got); reason != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, reason)
			}
		})
	}
}
