package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Bridge error codes.
const (
	CodeContactResolutionFailed = "CONTACT_RESOLUTION_FAILED"
	CodeTicketCreationFailed    = "TICKET_CREATION_FAILED"
	CodeRelayDispatchFailed     = "RELAY_DISPATCH_FAILED"
)

// DomainError standardizes application errors. Bridge failures are DomainErrors carrying
// one of the bridge codes above.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

// BridgeError is the domain-level failure surfaced by the relay pipeline.
type BridgeError = DomainError

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewBridgeError wraps a pipeline failure under a bridge code.
func NewBridgeError(code, message string, err error) *BridgeError {
	return &DomainError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewNotFound(message string) error {
	return NewDomainError("NOT_FOUND", message, http.StatusNotFound, nil)
}

func NewServiceUnavailable(message string) error {
	return NewDomainError("SERVICE_UNAVAILABLE", message, http.StatusServiceUnavailable, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsBridgeCode reports whether err is a BridgeError with the given code.
func IsBridgeCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return &DomainError{
			Code:       "UPSTREAM_AUTH_FAILED",
			Message:    "upstream authorization failed",
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return &DomainError{
			Code:       "UPSTREAM_ERROR",
			Message:    fmt.Sprintf("upstream returned status %d", remoteErr.Status),
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return &DomainError{
			Code:       "UPSTREAM_UNREACHABLE",
			Message:    "upstream unreachable",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
