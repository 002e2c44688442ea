// ABOUTME: Error taxonomy for the auth session store
// ABOUTME: Typed login and MFA errors decoded from auth service responses

package session

import (
	"errors"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
)

var (
	// ErrInvalidCredentials means the auth service rejected email/password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidMFACode means the auth service rejected the MFA code
	ErrInvalidMFACode = errors.New("invalid MFA code")
	// ErrLockedOut means no MFA attempts remain until the service's lockout window elapses
	ErrLockedOut = errors.New("locked out")
	// ErrSessionExpired means the auth service refused to extend the session
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by operations that need a session when there is none
	ErrNotAuthenticated = errors.New("not authenticated")
)

const (
	defaultLoginMessage = "Login failed"
	defaultMFAMessage   = "MFA verification failed"
)

// LoginError is returned by Store.Login
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidCredentials when the server answered with a rejection
func (e *LoginError) Is(target error) bool {
	if target != ErrInvalidCredentials {
		return false
	}
	var apiErr *client.APIError
	return errors.As(e.Err, &apiErr)
}

// MFAError is returned by Store.VerifyMFA.
// AttemptsRemaining is nil when the server did not report a count.
type MFAError struct {
	Message           string
	AttemptsRemaining *int
	Err               error
}

func (e *MFAError) Error() string {
	return e.Message
}

func (e *MFAError) Unwrap() error {
	return e.Err
}

// Locked reports whether the server signalled zero attempts remaining
func (e *MFAError) Locked() bool {
	return e.AttemptsRemaining != nil && *e.AttemptsRemaining == 0
}

// Is matches ErrInvalidMFACode for server rejections and ErrLockedOut at zero attempts
func (e *MFAError) Is(target error) bool {
	switch target {
	case ErrLockedOut:
		return e.Locked()
	case ErrInvalidMFACode:
		var apiErr *client.APIError
		return errors.As(e.Err, &apiErr)
	}
	return false
}

// newLoginError decodes a login failure
func newLoginError(err error) *LoginError {
	msg := defaultLoginMessage
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			msg = apiErr.Message
		}
	case client.IsNetworkError(err):
		msg = err.Error()
	}
	return &LoginError{Message: msg, Err: err}
}

// newMFAError decodes an MFA verification failure
func newMFAError(err error) *MFAError {
	e := &MFAError{Message: defaultMFAMessage, Err: err}
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			e.Message = apiErr.Message
		}
		if apiErr.AttemptsRemaining != nil {
			n := *apiErr.AttemptsRemaining
			if n < 0 {
				n = 0
			}
			e.AttemptsRemaining = &n
		}
	case client.IsNetworkError(err):
		e.Message = err.Error()
	}
	return e
}
