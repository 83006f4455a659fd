package acme

import (
	"fmt"
	"time"
)

// NetworkError is a transport failure that happened before a response was
// received. Callers may retry the request; the session's nonce has already
// been discarded.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a malformed or unexpected server response: invalid
// JSON, a schema violation, or a missing required header.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

// Protocolf builds a ProtocolError from a format string.
func Protocolf(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// ServerError is a problem document returned by the server. More specific
// error kinds (RateLimitedError, UserActionRequiredError) embed it.
type ServerError struct {
	Problem *Problem
}

func (e *ServerError) Error() string {
	return e.Problem.String()
}

// IsType reports whether the underlying problem has the given ACME error type
// suffix.
func (e *ServerError) IsType(suffix string) bool {
	return e.Problem.IsType(suffix)
}

// RateLimitedError is returned when the server rejects a request with the
// rateLimited problem type. RetryAfter is the zero time when the server sent
// no Retry-After header.
type RateLimitedError struct {
	ServerError
	// The earliest instant the server is willing to accept the request again.
	RetryAfter time.Time
	// URLs of documentation about the exceeded rate limit, from
	// Link: rel="urn:ietf:params:acme:documentation" response headers.
	Documents []string
}

// UserActionRequiredError is returned for the userActionRequired problem
// type, most commonly when the terms of service changed and must be agreed
// to again. Instance points at the instructions for the user.
type UserActionRequiredError struct {
	ServerError
	Instance string
}

// NotLoadedError is a usage error: a resource field was read, or an operation
// requiring resource state was invoked, before the resource was fetched with
// Update.
type NotLoadedError struct {
	Location string
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("resource %q has not been loaded, call Update first", e.Location)
}

// ProblemError wraps a parsed problem document in the error kind selected by
// its type URN. retryAfter and documents only apply to rateLimited problems.
func ProblemError(p *Problem, retryAfter time.Time, documents []string) error {
	switch {
	case p.IsType(ErrorRateLimited):
		return &RateLimitedError{
			ServerError: ServerError{Problem: p},
			RetryAfter:  retryAfter,
			Documents:   documents,
		}
	case p.IsType(ErrorUserActionRequired):
		return &UserActionRequiredError{
			ServerError: ServerError{Problem: p},
			Instance:    p.Instance,
		}
	default:
		return &ServerError{Problem: p}
	}
}
