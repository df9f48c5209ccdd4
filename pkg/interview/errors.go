package interview

import (
	"errors"
	"fmt"
)

// Error is the domain error carried across the gateway boundary.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest  ErrorType = "invalid_request_error"
	ErrSessionNotFound ErrorType = "session_not_found_error"
	ErrInvalidState    ErrorType = "invalid_transition_error"
	ErrExternal        ErrorType = "external_service_error"
	ErrPersistence     ErrorType = "persistence_error"
	ErrNotFound        ErrorType = "not_found_error"
	ErrAuthentication  ErrorType = "authentication_error"
	ErrAPI             ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

// NewSessionNotFoundError creates an error for an unknown session token.
func NewSessionNotFoundError(token string) *Error {
	return &Error{Type: ErrSessionNotFound, Message: fmt.Sprintf("no session with token %q", token)}
}

// NewInvalidTransitionError reports an illegal session status transition.
func NewInvalidTransitionError(from, to Status) *Error {
	return &Error{
		Type:    ErrInvalidState,
		Message: fmt.Sprintf("cannot transition session from %s to %s", from, to),
		Code:    "invalid_transition",
	}
}

// NewExternalServiceError wraps a failure of the intelligence backend.
func NewExternalServiceError(op string, underlying error) *Error {
	return &Error{Type: ErrExternal, Message: fmt.Sprintf("%s: %v", op, underlying)}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(op string, underlying error) *Error {
	return &Error{Type: ErrPersistence, Message: fmt.Sprintf("%s: %v", op, underlying)}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// AsError extracts an *Error from err, wrapping non-domain errors as ErrAPI.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de
	}
	return &Error{Type: ErrAPI, Message: err.Error()}
}

// IsType reports whether err is a domain error of the given type.
func IsType(err error, t ErrorType) bool {
	var de *Error
	return errors.As(err, &de) && de != nil && de.Type == t
}
