package client

import (
	"errors"
	"fmt"
)

// HTTPError represents a non-2xx HTTP response from the backend.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// AuthError is a credential or session rejection from the auth gateway.
// Message is the gateway's own text; wrong password and locked account are
// not told apart here.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// RepositoryError is a rejected scene insert. Message is the backend's text.
type RepositoryError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RepositoryError) Error() string {
	if e.Message == "" {
		return "scene repository rejected the request"
	}
	return e.Message
}

func authErrorFrom(err error) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return &AuthError{StatusCode: httpErr.StatusCode, Message: httpErr.Message}
	}
	return err
}

func repositoryErrorFrom(err error) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return &RepositoryError{StatusCode: httpErr.StatusCode, Code: httpErr.Code, Message: httpErr.Message}
	}
	return err
}
