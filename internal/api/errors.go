package api

import "fmt"

// TransportError means no response reached the client at all
// (connection refused, DNS failure, context cancellation mid-flight).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError means the backend rejected the bearer credential (401): the
// token is missing, invalid, or expired. Callers typically evict the stored
// credential and send the user back to login.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Detail
}

// NotFoundError means the requested resource does not exist or is not
// owned by the current user (404).
type NotFoundError struct {
	Detail string
}

func (e *NotFoundError) Error() string {
	if e.Detail == "" {
		return "not found"
	}
	return e.Detail
}

// ValidationError means the backend rejected a malformed or disallowed
// request (any other 4xx, e.g. a duplicate registration or a quota refusal).
type ValidationError struct {
	StatusCode int
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request rejected (status %d)", e.StatusCode)
	}
	return e.Detail
}
