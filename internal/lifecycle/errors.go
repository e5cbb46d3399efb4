package lifecycle

import (
	"errors"
	"fmt"
)

// Operation tags carried by OpError and Failed.
const (
	OpLogin       = "login"
	OpCreateScene = "create_scene"
	OpExport      = "export"
)

// Validation reasons.
const (
	ReasonInvalidPerimeter   = "invalid_perimeter"
	ReasonInvalidTitle       = "invalid_title"
	ReasonMissingCredentials = "missing_credentials"
	ReasonInvalidExportKind  = "invalid_export_kind"
)

// Precondition reasons.
const (
	ReasonNoSession            = "no_session"
	ReasonNoScene              = "no_scene"
	ReasonBusy                 = "busy"
	ReasonAlreadyAuthenticated = "already_authenticated"
	ReasonSuperseded           = "superseded"
)

// ValidationError is a local input rejection. It never costs a network call.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// PreconditionError means the action is not valid in the current state.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// Is matches any PreconditionError with the same reason.
func (e *PreconditionError) Is(target error) bool {
	t, ok := target.(*PreconditionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrNoSession            = &PreconditionError{Reason: ReasonNoSession}
	ErrNoScene              = &PreconditionError{Reason: ReasonNoScene}
	ErrBusy                 = &PreconditionError{Reason: ReasonBusy}
	ErrAlreadyAuthenticated = &PreconditionError{Reason: ReasonAlreadyAuthenticated}
	// ErrSuperseded is returned by an action whose response arrived after a
	// Logout; the response is dropped.
	ErrSuperseded = &PreconditionError{Reason: ReasonSuperseded}
)

// OpError is returned by every failed transition. Op is the context tag and
// Err the cause: a *ValidationError, *PreconditionError, *client.AuthError,
// *client.RepositoryError or a transport error.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Reason returns the reason tag of a validation or precondition failure in
// err's chain, or "" for remote and transport failures.
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
