package util

import (
	"errors"
	"fmt"
)

// Error codes used across the bot core.
const (
	CodeNotBound          = "NOT_BOUND"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyTaken      = "ALREADY_TAKEN"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeThreadUnavailable = "THREAD_UNAVAILABLE"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

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
func NewDomainError(code, message string, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

// NewNotBound reports a user without a current project binding.
func NewNotBound(userID int64) error {
	return NewDomainError(CodeNotBound, "user has no project binding", map[string]any{"user_id": userID})
}

// NewNotFound reports a lookup miss on a named resource.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), details)
}

// NewAlreadyTaken reports a lost claim race.
func NewAlreadyTaken(ticketID, operatorID int64) error {
	return NewDomainError(CodeAlreadyTaken, "ticket already in progress", map[string]any{
		"ticket_id":   ticketID,
		"assigned_to": operatorID,
	})
}

// NewIllegalTransition reports a status-machine violation.
func NewIllegalTransition(from, to string) error {
	return NewDomainError(CodeIllegalTransition, fmt.Sprintf("cannot transition from %s to %s", from, to), map[string]any{
		"from": from,
		"to":   to,
	})
}

// NewThreadUnavailable wraps a gateway failure while creating or posting to a thread.
func NewThreadUnavailable(err error) error {
	return &DomainError{Code: CodeThreadUnavailable, Message: "support thread unavailable", Err: err}
}

// NewValidationError reports invalid or missing input.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, details)
}

// NewUnauthorized reports a failed authentication.
func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, nil)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) error {
	return &DomainError{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf extracts the domain code from err, or CodeInternal for plain errors.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ToDomainError coerces any error into a DomainError for uniform rendering.
func ToDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{Code: CodeInternal, Message: "internal error", Err: err}
}

// HTTPStatus maps a domain code to an HTTP response status.
func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeValidationFailed, CodeIllegalTransition:
		return 422
	case CodeAlreadyTaken:
		return 409
	case CodeUnauthorized:
		return 401
	case CodeNotBound:
		return 403
	case CodeThreadUnavailable:
		return 502
	default:
		return 500
	}
}
