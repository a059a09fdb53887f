// Package apperror defines the error taxonomy shared by the service,
// repository and handler layers.
//
// Every failure a caller may need to react to has a sentinel. Concrete
// errors are *AppError values that wrap one sentinel, so callers match
// with errors.Is and read the user-displayable text from Message.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateUsername  = errors.New("duplicate username")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStorage            = errors.New("storage error")
)

type AppError struct {
	Err     error  // sentinel this error matches
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying infrastructure error, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is works for
// ErrStorage as well as for the driver error underneath it.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// DuplicateUsername is returned by registration when the username (or, with
// unique emails enabled, the email) is already taken.
func DuplicateUsername(field string) *AppError {
	return &AppError{
		Err:     ErrDuplicateUsername,
		Message: "username or email already exists",
		Field:   field,
	}
}

func UserNotFound(username string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user %q not found", username),
		Field:   "username",
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "incorrect password",
		Field:   "password",
	}
}

// Unauthorized means no credential was presented at all.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "authentication token not provided",
	}
}

// Forbidden means a credential was presented but rejected
// (bad signature, malformed, expired).
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Storage wraps an infrastructure failure. op names what was being done;
// it ends up in logs, while clients only ever see a generic message.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: "storage: " + op,
		Cause:   cause,
	}
}
