package session

import (
	"errors"
	"fmt"

	"supplydash/pkg/excerpt"
)

var (
	// ErrInteractiveLoginRequired is returned when neither a cached token nor
	// a guest session is available and no Authorizer is configured. The
	// concrete error is an *InteractiveLoginError carrying the URL to visit.
	ErrInteractiveLoginRequired = errors.New("session: interactive login required")

	// ErrSessionClosed is returned for calls on a closed session.
	ErrSessionClosed = errors.New("session: closed")

	// ErrFieldNotFound is returned when a hypercube has no column with the
	// requested title.
	ErrFieldNotFound = errors.New("session: field not found")
)

// InteractiveLoginError tells the caller where the owner has to log in.
type InteractiveLoginError struct {
	AuthURL string
	State   string
}

func (e *InteractiveLoginError) Error() string {
	return fmt.Sprintf("%s: open %s", ErrInteractiveLoginRequired, e.AuthURL)
}

func (e *InteractiveLoginError) Is(target error) bool {
	return target == ErrInteractiveLoginRequired
}

// BackendError is a non-success response from the supplydash backend.
type BackendError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, excerpt.Line(e.Body, excerpt.DefaultLen))
}

// RPCError is an error object returned by the engine.
type RPCError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Parameter string `json:"parameter,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("engine error %d: %s (%s)", e.Code, e.Message, e.Parameter)
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}
