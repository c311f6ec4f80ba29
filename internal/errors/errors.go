// Package errors provides custom error types for the nurchat client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases
var (
	ErrAuthFailed         = errors.New("authentication failed")
	ErrNoToken            = errors.New("no access token found")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("assistant service unavailable")
	ErrNoResponse         = errors.New("no response from assistant")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrMalformedFrame     = errors.New("malformed frame payload")
	ErrSessionBusy        = errors.New("a reply is already streaming for this conversation")
	ErrIncompleteStream   = errors.New("stream ended without a done or error frame")
)

// AuthError represents an authentication failure
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: token may be invalid or expired"
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is allows comparison with sentinel errors
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthFailed {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// APIError represents a request that reached the backend and came back with a
// non-success status.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// Is maps status codes onto the sentinels callers test against.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	_, ok := target.(*APIError)
	return ok
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates a new APIError keeping the raw response body for diagnostics
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Body:       body,
	}
}

// NetworkError represents a transport-level failure (DNS, refused connection,
// reset while reading).
type NetworkError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s (%s): %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is allows comparison with ErrNetworkUnavailable
func (e *NetworkError) Is(target error) bool {
	if target == ErrNetworkUnavailable {
		return true
	}
	_, ok := target.(*NetworkError)
	return ok
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

// NewNetworkErrorWithEndpoint creates a new NetworkError tagged with the endpoint
func NewNetworkErrorWithEndpoint(op, endpoint string, err error) *NetworkError {
	return &NetworkError{Op: op, Endpoint: endpoint, Err: err}
}

// ParseError represents a payload that could not be decoded
type ParseError struct {
	Message string
	Payload string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Is allows comparison with ErrMalformedFrame
func (e *ParseError) Is(target error) bool {
	if target == ErrMalformedFrame {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// NewParseError creates a new ParseError
func NewParseError(message, payload string) *ParseError {
	return &ParseError{Message: message, Payload: payload}
}

// StreamError carries the message of an error frame sent by the assistant
// service, plus whatever reply text had arrived before it.
type StreamError struct {
	Message string
	Partial string
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("assistant error (after %d chars): %s", len(e.Partial), e.Message)
	}
	return fmt.Sprintf("assistant error: %s", e.Message)
}

// NewStreamError creates a new StreamError
func NewStreamError(message, partial string) *StreamError {
	return &StreamError{Message: message, Partial: partial}
}

// PersistError means the user's message could not be saved, so no stream was
// opened.
type PersistError struct {
	ConversationID string
	Err            error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to save message to conversation %s: %v", e.ConversationID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// NewPersistError creates a new PersistError
func NewPersistError(conversationID string, err error) *PersistError {
	return &PersistError{ConversationID: conversationID, Err: err}
}

// IsAuthError reports whether err is an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsNetworkError reports whether err is a transport-level failure
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetEndpoint returns the endpoint carried by err, or ""
func GetEndpoint(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Endpoint
	}
	return ""
}

// GetResponseBody returns the raw error body carried by err, or ""
func GetResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}

// Is is a convenience re-export so callers importing this package as
// apierrors do not also need the standard errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is the errors.As counterpart of Is.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// UserMessage returns the notification text shown for a failed send.
func UserMessage(err error) string {
	var persistErr *PersistError
	var streamErr *StreamError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &persistErr):
		return "Failed to send message. Please check your connection."
	case errors.As(err, &streamErr):
		return "Error: " + streamErr.Message
	case errors.Is(err, ErrNoResponse):
		return "No response from assistant."
	case errors.Is(err, ErrServiceUnavailable):
		return "Assistant service unavailable."
	case errors.Is(err, ErrNetworkUnavailable):
		return "Network not available. Please check your internet."
	case errors.Is(err, ErrIncompleteStream):
		return "The reply ended unexpectedly. Showing what the server saved."
	case errors.Is(err, ErrSessionBusy):
		return "Please wait for the current reply to finish."
	}
	return fmt.Sprintf("Error: %v", err)
}
