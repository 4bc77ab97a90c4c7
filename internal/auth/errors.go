package auth

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes service errors.
type ErrorCode string

const (
	// CodeValidation indicates missing or malformed input.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeConflict indicates a duplicate email on register.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeAuth indicates bad credentials or an operation that needs a session.
	CodeAuth ErrorCode = "AUTH"

	// CodePersistence indicates the store failed to read or write.
	CodePersistence ErrorCode = "PERSISTENCE"
)

// Error is returned by every Service operation that fails.
// Prior state is unchanged whenever an Error is returned.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the service operation that failed (e.g. "register").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsConflict reports whether err is a duplicate-email error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool { return CodeOf(err) == CodeAuth }

// IsPersistence reports whether err is a store failure.
func IsPersistence(err error) bool { return CodeOf(err) == CodePersistence }
