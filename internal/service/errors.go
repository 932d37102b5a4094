package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrPrecondition    = errors.New("precondition failed")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error carries a user-facing message and the kind it belongs to.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Messages surfaced to clients.
const (
	msgNameInUse      = "Custom name already in use"
	msgPageNameTaken  = "This name has already been taken. Please choose another name"
	msgOnePagePerUser = "Only one page allowed per account"
	msgNotOwner       = "You don't have permission to modify this data"
	msgPageRequired   = "Please create a page first"
	msgLinkNotFound   = "No page or item found to edit"
	msgNotFound       = "Not found"
)

var (
	errNameInUse      = newError(ErrConflict, "NAME_IN_USE", msgNameInUse)
	errPageNameTaken  = newError(ErrConflict, "NAME_TAKEN", msgPageNameTaken)
	errOnePagePerUser = newError(ErrConflict, "PAGE_LIMIT", msgOnePagePerUser)
	errNotOwner       = newError(ErrForbidden, "FORBIDDEN", msgNotOwner)
	errPageRequired   = newError(ErrPrecondition, "PAGE_REQUIRED", msgPageRequired)
	errLinkNotFound   = newError(ErrNotFound, "LINK_NOT_FOUND", msgLinkNotFound)
	errNotFound       = newError(ErrNotFound, "NOT_FOUND", msgNotFound)
	errBusy           = newError(ErrConflict, "CONCURRENT_UPDATE", "The page was modified concurrently, please retry")
	errSlugExhausted  = newError(ErrConflict, "NAME_IN_USE", "Could not allocate a unique name, please retry")

	errUnauthenticated = newError(ErrUnauthenticated, "UNAUTHENTICATED", "User not logged in or not a valid user")
)

// validationError wraps a field validation failure.
func validationError(err error) *Error {
	return &Error{Kind: ErrValidation, Code: "VALIDATION_FAILED", Message: err.Error(), Err: err}
}

// invalid builds a validation error from a plain message.
func invalid(message string) *Error {
	return newError(ErrValidation, "VALIDATION_FAILED", message)
}
