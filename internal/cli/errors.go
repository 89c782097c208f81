package cli

import (
	"errors"
	"fmt"

	"supplydash/internal/broker"
	"supplydash/internal/session"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the provider rejected the credentials.
	ExitCodeAuthFailed = 3
)

// AuthRequiredError indicates no token could be obtained without the owner
// logging in.
type AuthRequiredError struct {
	// AuthURL is where the owner can log in, when known.
	AuthURL string
	Reason  error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	msg := "Authentication required: no guest session is available."
	if e.AuthURL != "" {
		msg += "\n\nOpen this URL to log in:\n  " + e.AuthURL
	}
	return msg + `

To log in as the owner from this machine, run:
  supplydash auth login

To check whether a refresh token is stored:
  supplydash auth status`
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Reason
}

// AuthFailedError indicates the provider rejected the login.
type AuthFailedError struct {
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed: %v

To retry, run:
  supplydash auth login`, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// ClassifyAuthError wraps err in AuthRequiredError or AuthFailedError when it
// is one of the known authentication outcomes, and returns it unchanged
// otherwise.
func ClassifyAuthError(err error) error {
	if err == nil {
		return nil
	}

	var ile *session.InteractiveLoginError
	if errors.As(err, &ile) {
		return &AuthRequiredError{AuthURL: ile.AuthURL, Reason: err}
	}
	if errors.Is(err, broker.ErrNoGuestSession) || errors.Is(err, session.ErrInteractiveLoginRequired) {
		return &AuthRequiredError{Reason: err}
	}
	if broker.IsKind(err, broker.KindRejected) {
		return &AuthFailedError{Reason: err}
	}

	var be *session.BackendError
	if errors.As(err, &be) && be.StatusCode >= 400 && be.StatusCode < 500 {
		return &AuthFailedError{Reason: err}
	}
	return err
}

// ExitCode determines the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authRequired *AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}
	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	switch ClassifyAuthError(err).(type) {
	case *AuthRequiredError:
		return ExitCodeAuthRequired
	case *AuthFailedError:
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}
