// ABOUTME: HTTP client for the NDA portal auth service
// ABOUTME: Wraps who-am-I, login, MFA, refresh and logout calls with cookie and CSRF handling

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// CSRFHeader carries the anti-forgery token on state-mutating requests
const CSRFHeader = "x-csrf-token"

// Auth service endpoints
const (
	PathMe        = "/api/auth/me"
	PathLogin     = "/api/auth/login"
	PathMFAVerify = "/api/auth/mfa/verify"
	PathRefresh   = "/api/auth/refresh"
	PathLogout    = "/api/auth/logout"
	PathHealth    = "/api/health"
)

// Client is the API client for the auth service.
// The session cookie set by the server lives in the client's cookie jar and
// is never read by this package.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A client without a
// cookie jar gets one, since the session cookie is the ambient credential.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new API client with the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		// cookiejar.New never returns a non-nil error
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		c.httpClient.Jar = jar
	}
	return c
}

// BaseURL returns the auth service URL this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// User is the identity record returned by the auth service
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// SessionResponse is returned by who-am-I and MFA verification
type SessionResponse struct {
	User      User   `json:"user"`
	ExpiresAt int64  `json:"expiresAt"` // epoch milliseconds
	CSRFToken string `json:"csrfToken"`
}

// LoginRequest represents credentials for the first login step
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginChallenge is the MFA challenge issued after valid credentials
type LoginChallenge struct {
	ChallengeName string `json:"challengeName"`
	Session       string `json:"session"`
}

// MFARequest submits an MFA code against a challenge session
type MFARequest struct {
	Session string `json:"session"`
	MFACode string `json:"mfaCode"`
}

// RefreshResponse carries the extended expiry and an optional rotated token
type RefreshResponse struct {
	ExpiresAt int64  `json:"expiresAt"`
	CSRFToken string `json:"csrfToken,omitempty"`
}

// HealthResponse represents the /api/health endpoint response
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

// APIError is a non-2xx response from the auth service
type APIError struct {
	StatusCode        int
	Message           string
	AttemptsRemaining *int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth service returned status %d", e.StatusCode)
	}
	return e.Message
}

// NetworkError means no response was received at all
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case errors.Is(e.Err, context.Canceled):
		return "request canceled"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "request timed out"
	}
	return fmt.Sprintf("cannot connect to auth service at %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err came from a request that got no response
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// WhoAmI calls GET /api/auth/me using the ambient session cookie
func (c *Client) WhoAmI(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(ctx, http.MethodGet, PathMe, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login calls POST /api/auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*LoginChallenge, error) {
	var out LoginChallenge
	if err := c.do(ctx, http.MethodPost, PathLogin, "", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA calls POST /api/auth/mfa/verify
func (c *Client) VerifyMFA(ctx context.Context, session, code string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(ctx, http.MethodPost, PathMFAVerify, "", MFARequest{Session: session, MFACode: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh calls POST /api/auth/refresh, attaching the CSRF token when present
func (c *Client) Refresh(ctx context.Context, csrfToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	if err := c.do(ctx, http.MethodPost, PathRefresh, csrfToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout calls POST /api/auth/logout, attaching the CSRF token when present.
// The response body is ignored.
func (c *Client) Logout(ctx context.Context, csrfToken string) error {
	return c.do(ctx, http.MethodPost, PathLogout, csrfToken, nil, nil)
}

// Health calls GET /api/health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, PathHealth, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs a JSON request. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, method, path, csrfToken string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if csrfToken != "" {
		req.Header.Set(CSRFHeader, csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	slog.Debug("Auth service response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from auth service: %w", err)
	}
	return nil
}

// handleRequestError wraps transport failures, keeping context errors visible
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &NetworkError{URL: c.baseURL, Err: ctxErr}
	}
	return &NetworkError{URL: c.baseURL, Err: err}
}

// handleErrorResponse parses API error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		apiErr.Message = errResp.Error
		apiErr.AttemptsRemaining = errResp.AttemptsRemaining
	}
	return apiErr
}
