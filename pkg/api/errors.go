package api

import (
	"fmt"
	"net/http"
)

// AuthError reports invalid credentials or a missing session identity.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports a failed fetch of a single document.
type NotFoundError struct {
	Resource   string
	ID         string
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not available (status %d)", e.Resource, e.ID, e.StatusCode)
}

// NetworkError reports a transport failure or a failed list/post request.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.StatusCode))
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpdateError reports a rejected commit; Message carries the server's text when present.
type UpdateError struct {
	Resource   string
	ID         string
	StatusCode int
	Message    string
}

func (e *UpdateError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("failed to update %s '%s': %s", e.Resource, e.ID, msg)
}
