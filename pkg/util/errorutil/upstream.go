package errorutil

import (
	"errors"
	"fmt"
)

// AuthReason classifies a credential refresh failure.
type AuthReason string

const (
	AuthMissingCredentials AuthReason = "missing_credentials"
	AuthExchangeRejected   AuthReason = "exchange_rejected"
	AuthTransport          AuthReason = "transport"
)

// ErrMissingCredentials is returned when refresh secrets are not configured.
var ErrMissingCredentials = errors.New("refresh token or client credentials missing")

// AuthError reports a failed credential refresh.
type AuthError struct {
	Reason AuthReason
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("auth %s (status %d): %v", e.Reason, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("auth %s: %v", e.Reason, e.Err)
	}
	return "auth " + string(e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-success response from a remote platform.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, truncate(e.Body, 512))
}

// TransportError wraps network level failures (timeouts, refused connections, DNS).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
