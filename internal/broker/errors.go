package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoGuestSession is returned by Guest.Login when no refresh token has
// been stored yet. The owner has to log in interactively once.
var ErrNoGuestSession = errors.New("no guest session available, owner must log in once first")

// Kind classifies broker failures.
type Kind int

const (
	// KindConfiguration means client credentials or the host are missing or not allowed.
	KindConfiguration Kind = iota + 1
	// KindNetwork means the provider could not be reached or timed out.
	KindNetwork
	// KindRejected means the provider answered with a non-2xx status.
	KindRejected
	// KindMalformed means a 2xx answer could not be parsed as a token response.
	KindMalformed
	// KindPersist means a refresh token was issued but could not be stored.
	KindPersist
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed response"
	case KindPersist:
		return "persist"
	default:
		return "unknown"
	}
}

// Error is returned by every Broker operation that fails.
type Error struct {
	Kind Kind
	// Op is the grant being performed, e.g. "authorization_code".
	Op string
	// StatusCode and Body are the provider response for KindRejected and
	// KindMalformed. Body is kept verbatim.
	StatusCode int
	Body       []byte
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("token exchange (%s) failed: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OAuthError returns the "error" member of a JSON provider body, such as
// invalid_grant, or "" if the body is not an OAuth error document.
func (e *Error) OAuthError() string {
	if len(e.Body) == 0 {
		return ""
	}
	var doc struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(e.Body, &doc) != nil {
		return ""
	}
	return doc.Error
}

// IsKind reports whether err is a broker *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}

func configError(op, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: msg}
}
